/*
Package decision evaluates the notification rules for one monitor run.

Rules run in a fixed order. A count change (rule A) is always reported. An
available flagship class (rule B) ends evaluation; otherwise every other
bookable class starting before the deadline is listed (rule C).
*/
package decision

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shanehull/classmonitor/internal/types"
)

const (
	RuleCountChanged      = "count_changed"
	RuleFlagshipAvailable = "flagship_available"
	RuleEarlyAvailability = "early_availability"

	DefaultTitle    = "Eventbrite Class Alert"
	DefaultPriority = 1

	MessageFlagshipAvailable = "The target class is now available!"
	earlyAvailabilityHeader  = "New classes available before the deadline:\n"

	dateLayout = "2006-01-02"
)

// Rules holds the constants the rules depend on. It is passed by value and
// never mutated after construction.
type Rules struct {
	FlagshipTitle string
	// Denylist entries are matched case-insensitively against titles.
	Denylist []string
	Deadline time.Time
	Title    string
	// Priority 0 means DefaultPriority. Pushover's normal priority is not
	// used for alerts.
	Priority int
}

type Decision struct {
	State         types.MonitorState
	Notifications []types.Notification
	FlagshipFound bool
	EarlyMatches  []string
}

type Engine struct {
	rules    Rules
	denylist []string
	logger   *slog.Logger
}

func NewEngine(rules Rules, logger *slog.Logger) *Engine {
	if rules.Title == "" {
		rules.Title = DefaultTitle
	}
	if rules.Priority == 0 {
		rules.Priority = DefaultPriority
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	denylist := make([]string, 0, len(rules.Denylist))
	for _, kw := range rules.Denylist {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			denylist = append(denylist, kw)
		}
	}
	rules.Denylist = append([]string(nil), rules.Denylist...)

	return &Engine{rules: rules, denylist: denylist, logger: logger}
}

func (e *Engine) Rules() Rules {
	r := e.rules
	r.Denylist = append([]string(nil), e.rules.Denylist...)
	return r
}

// Decide computes the next state and the notifications to send for this run.
func (e *Engine) Decide(records []types.EnrichedEventRecord, previousCount int) Decision {
	d := Decision{
		State: types.MonitorState{ClassCount: len(records)},
	}

	if len(records) != previousCount {
		d.Notifications = append(d.Notifications, e.notification(RuleCountChanged,
			fmt.Sprintf("Number of classes has changed from %d to %d!", previousCount, len(records))))
		e.logger.Info("decision: class count changed", "previous", previousCount, "current", len(records))
	}

	found, available := e.flagshipStatus(records)
	d.FlagshipFound = found
	if available {
		d.Notifications = append(d.Notifications, e.notification(RuleFlagshipAvailable, MessageFlagshipAvailable))
		e.logger.Info("decision: target class is available", "flagship", e.rules.FlagshipTitle)
		return d
	}
	if !found {
		e.logger.Warn("decision: target class not found in the data", "flagship", e.rules.FlagshipTitle)
	}

	d.EarlyMatches = e.earlyAvailable(records)
	if len(d.EarlyMatches) > 0 {
		d.Notifications = append(d.Notifications, e.notification(RuleEarlyAvailability,
			earlyAvailabilityHeader+strings.Join(d.EarlyMatches, "\n")))
		e.logger.Info("decision: classes available before the deadline",
			"count", len(d.EarlyMatches), "deadline", e.rules.Deadline.Format(dateLayout))
	}

	if len(d.Notifications) == 0 {
		e.logger.Info("decision: no push notification needed")
	}
	return d
}

func (e *Engine) flagshipStatus(records []types.EnrichedEventRecord) (found, available bool) {
	if e.rules.FlagshipTitle == "" {
		return false, false
	}
	for _, r := range records {
		if r.Title == "" || !strings.Contains(r.Title, e.rules.FlagshipTitle) {
			continue
		}
		found = true
		if r.Status == types.StatusAvailable {
			return true, true
		}
	}
	return found, false
}

func (e *Engine) earlyAvailable(records []types.EnrichedEventRecord) []string {
	var titles []string
	for _, r := range records {
		if !r.HasDate() || r.Title == "" || r.Status == "" {
			continue
		}
		if e.denied(r.Title) {
			continue
		}
		if r.Status != types.StatusAvailable {
			continue
		}

		start, err := time.Parse(dateLayout, r.FirstDate)
		if err != nil {
			e.logger.Warn("decision: skipping record with unparseable first_date",
				"title", r.Title, "first_date", r.FirstDate)
			continue
		}
		if start.Before(e.rules.Deadline) {
			titles = append(titles, r.Title)
		}
	}
	return titles
}

func (e *Engine) denied(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range e.denylist {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (e *Engine) notification(rule, message string) types.Notification {
	return types.Notification{
		Message:  message,
		Title:    e.rules.Title,
		Priority: e.rules.Priority,
		Rule:     rule,
	}
}
