/*
Package metrics records per-run monitor metrics and writes them in the
Prometheus text exposition format for the node-exporter textfile collector.
*/
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "classmonitor"

type Metrics struct {
	registry *prometheus.Registry

	eventsScraped  prometheus.Gauge
	unknownDates   prometheus.Gauge
	previousCount  prometheus.Gauge
	currentCount   prometheus.Gauge
	earlyMatches   prometheus.Gauge
	flagshipFound  prometheus.Gauge
	scrapeFailed   prometheus.Gauge
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
	notifications  *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
}

// New builds a fresh registry so that each run exports only its own values.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsScraped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_scraped",
			Help:      "Number of event cards scraped in the last run",
		}),
		unknownDates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unknown_dates",
			Help:      "Number of records whose first date could not be extracted",
		}),
		previousCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "previous_class_count",
			Help:      "Class count loaded from the state file",
		}),
		currentCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "class_count",
			Help:      "Class count saved at the end of the last run",
		}),
		earlyMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "early_matches",
			Help:      "Number of available classes before the deadline",
		}),
		flagshipFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flagship_found",
			Help:      "1 if a flagship class was present on the page",
		}),
		scrapeFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scrape_failed",
			Help:      "1 if the last scrape returned an error",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed run",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered by rule",
		}, []string{"rule"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notifications that failed delivery by rule",
		}, []string{"rule"}),
	}

	m.registry.MustRegister(
		m.eventsScraped, m.unknownDates, m.previousCount, m.currentCount,
		m.earlyMatches, m.flagshipFound, m.scrapeFailed,
		m.runDuration, m.lastRun, m.notifications, m.notifyFailures,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveScrape(events int, err error) {
	m.eventsScraped.Set(float64(events))
	m.scrapeFailed.Set(boolToFloat(err != nil))
}

func (m *Metrics) ObserveUnknownDates(n int) {
	m.unknownDates.Set(float64(n))
}

func (m *Metrics) ObserveCounts(previous, current int) {
	m.previousCount.Set(float64(previous))
	m.currentCount.Set(float64(current))
}

func (m *Metrics) ObserveDecision(flagshipFound bool, earlyMatches int) {
	m.flagshipFound.Set(boolToFloat(flagshipFound))
	m.earlyMatches.Set(float64(earlyMatches))
}

func (m *Metrics) NotificationSent(rule string) {
	m.notifications.WithLabelValues(rule).Inc()
}

func (m *Metrics) NotificationFailed(rule string) {
	m.notifyFailures.WithLabelValues(rule).Inc()
}

// Finish stamps the run duration and completion time.
func (m *Metrics) Finish(start, end time.Time) {
	m.runDuration.Set(end.Sub(start).Seconds())
	m.lastRun.Set(float64(end.Unix()))
}

// WriteTextfile atomically writes the registry to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
