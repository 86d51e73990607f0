/*
Package notify delivers monitor notifications over push, email and console
channels.
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shanehull/classmonitor/internal/types"
)

// Notifier delivers a single notification. Delivery is best-effort: callers
// log failures and never retry.
type Notifier interface {
	Notify(ctx context.Context, n types.Notification) error
}

type namedNotifier interface {
	Notifier
	Name() string
}

// Multi fans a notification out to every configured channel.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Notify sends to every channel, even after a failure, and joins the errors.
func (m *Multi) Notify(ctx context.Context, n types.Notification) error {
	var errs []error
	for _, nt := range m.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channelName(nt), err))
		}
	}
	return errors.Join(errs...)
}

func channelName(n Notifier) string {
	if nn, ok := n.(namedNotifier); ok {
		return nn.Name()
	}
	return fmt.Sprintf("%T", n)
}

// DryRunNotifier logs what would be sent without contacting any service.
type DryRunNotifier struct {
	logger *slog.Logger
}

func NewDryRunNotifier(logger *slog.Logger) *DryRunNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunNotifier{logger: logger}
}

func (n *DryRunNotifier) Name() string { return "dry-run" }

func (n *DryRunNotifier) Notify(_ context.Context, notification types.Notification) error {
	n.logger.Info("notify: dry run",
		"title", notification.Title,
		"priority", notification.Priority,
		"rule", notification.Rule,
		"message", notification.Message)
	return nil
}
