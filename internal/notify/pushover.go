package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shanehull/classmonitor/internal/types"
)

const (
	DefaultPushoverURL = "https://api.pushover.net/1/messages.json"
	pushoverTimeout    = 15 * time.Second
)

type PushoverConfig struct {
	UserKey  string
	APIToken string
	// URL overrides the messages endpoint.
	URL string
}

func (c PushoverConfig) Enabled() bool {
	return c.UserKey != "" && c.APIToken != ""
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

// PushoverSender sends push notifications through the Pushover messages API.
type PushoverSender struct {
	cfg    PushoverConfig
	client *resty.Client
	logger *slog.Logger
}

func NewPushoverSender(cfg PushoverConfig, logger *slog.Logger) *PushoverSender {
	if cfg.URL == "" {
		cfg.URL = DefaultPushoverURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(pushoverTimeout).
		SetHeader("Accept", "application/json")

	return &PushoverSender{cfg: cfg, client: client, logger: logger}
}

func (s *PushoverSender) Name() string { return "pushover" }

func (s *PushoverSender) Notify(ctx context.Context, n types.Notification) error {
	var result pushoverResponse

	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":    s.cfg.APIToken,
			"user":     s.cfg.UserKey,
			"title":    n.Title,
			"message":  n.Message,
			"priority": strconv.Itoa(n.Priority),
		}).
		SetResult(&result).
		SetError(&result).
		Post(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}

	if res.IsError() || result.Status != 1 {
		reason := strings.Join(result.Errors, "; ")
		if reason == "" {
			reason = strings.TrimSpace(res.String())
		}
		return fmt.Errorf("pushover rejected message (http %d): %s", res.StatusCode(), reason)
	}

	s.logger.Info("notify: pushover accepted message", "request", result.Request, "rule", n.Rule)
	return nil
}
