/*
Package monitor runs one pass of the class monitor pipeline: scrape, enrich,
persist artifacts, decide, save state and notify.
*/
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shanehull/classmonitor/internal/decision"
	"github.com/shanehull/classmonitor/internal/jobs"
	"github.com/shanehull/classmonitor/internal/metrics"
	"github.com/shanehull/classmonitor/internal/notify"
	"github.com/shanehull/classmonitor/internal/types"
)

type Scraper interface {
	Scrape(ctx context.Context) ([]types.EventRecord, error)
}

type Extractor interface {
	Enrich(ctx context.Context, records []types.EventRecord) []types.EnrichedEventRecord
}

type StateStore interface {
	Load() int
	Save(count int) error
}

type Options struct {
	Scraper   Scraper
	Extractor Extractor
	Store     StateStore
	Engine    *decision.Engine
	Notifier  notify.Notifier
	// Job receives the run artifacts. Nil skips artifact writing.
	Job     *jobs.Job
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

type Monitor struct {
	opts Options
}

// Report summarises a completed run.
type Report struct {
	Scraped       int
	UnknownDates  int
	PreviousCount int
	Decision      decision.Decision
	Sent          int
	Failed        int
	ScrapeErr     error
}

func New(opts Options) (*Monitor, error) {
	if opts.Store == nil {
		return nil, errors.New("monitor: state store is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("monitor: decision engine is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("monitor: notifier is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{opts: opts}, nil
}

// Run executes the full pipeline. The only error it returns is a failure to
// save state; every other failure is logged and the run continues. A failed
// scrape still writes empty artifacts but sends nothing and leaves the state
// file untouched.
func (m *Monitor) Run(ctx context.Context) (Report, error) {
	if m.opts.Scraper == nil || m.opts.Extractor == nil {
		return Report{}, errors.New("monitor: scraper and extractor are required to run")
	}

	start := m.opts.Now()
	log := m.opts.Logger

	log.Info("monitor: starting run")

	records, scrapeErr := m.opts.Scraper.Scrape(ctx)
	if scrapeErr != nil {
		log.Error("monitor: scrape failed, continuing with no records", "error", scrapeErr)
		records = nil
	}
	m.opts.Metrics.ObserveScrape(len(records), scrapeErr)
	log.Info("monitor: scraped events", "count", len(records))
	m.writeArtifact(jobs.RawArtifactName, records)

	enriched := m.opts.Extractor.Enrich(ctx, records)
	m.writeArtifact(jobs.EnrichedArtifactName, enriched)

	var (
		report Report
		err    error
	)
	if scrapeErr != nil {
		// A failed scrape says nothing about the page, so the saved count is
		// kept and no rule is evaluated.
		report.PreviousCount = m.opts.Store.Load()
		report.Decision.State.ClassCount = report.PreviousCount
		m.opts.Metrics.ObserveCounts(report.PreviousCount, report.PreviousCount)
		log.Warn("monitor: skipping decision after scrape failure", "class_count", report.PreviousCount)
	} else {
		report, err = m.Apply(ctx, enriched, true)
	}
	report.Scraped = len(records)
	report.ScrapeErr = scrapeErr

	m.opts.Metrics.Finish(start, m.opts.Now())
	m.writeMetrics()

	log.Info("monitor: run finished",
		"events", report.Scraped,
		"notifications_sent", report.Sent,
		"notifications_failed", report.Failed,
		"duration", m.opts.Now().Sub(start).Round(time.Millisecond))
	return report, err
}

// Apply decides over already enriched records, optionally saves the new
// state and dispatches the resulting notifications.
func (m *Monitor) Apply(ctx context.Context, enriched []types.EnrichedEventRecord, saveState bool) (Report, error) {
	log := m.opts.Logger

	report := Report{
		Scraped:       len(enriched),
		UnknownDates:  countUnknown(enriched),
		PreviousCount: m.opts.Store.Load(),
	}
	m.opts.Metrics.ObserveUnknownDates(report.UnknownDates)

	report.Decision = m.opts.Engine.Decide(enriched, report.PreviousCount)
	m.opts.Metrics.ObserveCounts(report.PreviousCount, report.Decision.State.ClassCount)
	m.opts.Metrics.ObserveDecision(report.Decision.FlagshipFound, len(report.Decision.EarlyMatches))

	var saveErr error
	if saveState {
		if err := m.opts.Store.Save(report.Decision.State.ClassCount); err != nil {
			log.Error("monitor: failed to save state", "error", err)
			saveErr = fmt.Errorf("failed to save state: %w", err)
		} else {
			log.Info("monitor: saved state", "class_count", report.Decision.State.ClassCount)
		}
	}

	for _, n := range report.Decision.Notifications {
		if err := m.opts.Notifier.Notify(ctx, n); err != nil {
			report.Failed++
			m.opts.Metrics.NotificationFailed(n.Rule)
			log.Error("monitor: failed to send notification", "rule", n.Rule, "error", err)
			continue
		}
		report.Sent++
		m.opts.Metrics.NotificationSent(n.Rule)
	}

	return report, saveErr
}

func (m *Monitor) writeArtifact(name string, v any) {
	if m.opts.Job == nil {
		return
	}
	if err := m.opts.Job.WriteJSON(name, v); err != nil {
		m.opts.Logger.Error("monitor: failed to write artifact", "artifact", name, "error", err)
		return
	}
	m.opts.Logger.Info("monitor: wrote artifact", "path", m.opts.Job.Path(name))
}

func (m *Monitor) writeMetrics() {
	if m.opts.Job == nil {
		return
	}
	if err := m.opts.Metrics.WriteTextfile(m.opts.Job.Path(jobs.MetricsFileName)); err != nil {
		m.opts.Logger.Error("monitor: failed to write metrics", "error", err)
	}
}

func countUnknown(records []types.EnrichedEventRecord) int {
	n := 0
	for _, r := range records {
		if !r.HasDate() {
			n++
		}
	}
	return n
}
