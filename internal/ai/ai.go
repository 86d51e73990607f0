/*
Package ai resolves free-text event schedules into calendar dates using the
Gemini API.
*/
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shanehull/classmonitor/internal/types"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 30 * time.Second
	isoDateLayout  = "2006-01-02"
)

// ContentGenerator is the subset of the Gemini models API used for extraction.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// Workers bounds concurrent extraction calls. 1 keeps calls sequential.
	Workers int
	Logger  *slog.Logger
	Now     func() time.Time
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// DateExtractor finds the earliest date in a dates description. It never
// fails: anything it cannot resolve becomes types.UnknownDate.
type DateExtractor struct {
	gen ContentGenerator
	cfg Config
}

// NewDateExtractor creates an extractor backed by the Gemini API. Without an
// API key the extractor is disabled and resolves every record to
// types.UnknownDate.
func NewDateExtractor(ctx context.Context, cfg Config) (*DateExtractor, error) {
	cfg.defaults()

	if cfg.APIKey == "" {
		cfg.Logger.Warn("ai: no gemini API key configured, all dates will be unknown")
		return &DateExtractor{cfg: cfg}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &DateExtractor{gen: client.Models, cfg: cfg}, nil
}

// NewDateExtractorWithGenerator creates an extractor over an existing generator.
func NewDateExtractorWithGenerator(gen ContentGenerator, cfg Config) *DateExtractor {
	cfg.defaults()
	return &DateExtractor{gen: gen, cfg: cfg}
}

// Enabled reports whether the extractor will call the model.
func (e *DateExtractor) Enabled() bool {
	return e.gen != nil
}

// ExtractFirstDate returns the earliest date in datesDetail as YYYY-MM-DD, or
// types.UnknownDate.
func (e *DateExtractor) ExtractFirstDate(ctx context.Context, datesDetail string) string {
	if strings.TrimSpace(datesDetail) == "" || !e.Enabled() {
		return types.UnknownDate
	}

	date, err := e.generate(ctx, datesDetail)
	if err != nil {
		e.cfg.Logger.Warn("ai: date extraction failed", "dates_detail", datesDetail, "error", err)
		return types.UnknownDate
	}
	return date
}

func (e *DateExtractor) generate(ctx context.Context, datesDetail string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	systemContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: buildSystemInstruction(e.cfg.Now().Format(isoDateLayout))},
		},
		Role: "system",
	}

	userContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: buildUserPrompt(datesDetail)},
		},
		Role: "user",
	}

	temperature := float32(0)

	resp, err := e.gen.GenerateContent(ctx, e.cfg.Model, []*genai.Content{userContent}, &genai.GenerateContentConfig{
		SystemInstruction: systemContent,
		Temperature:       &temperature,
		ResponseMIMEType:  "text/plain",
	})
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini returned an empty response")
	}

	respText := resp.Text()

	date, ok := NormalizeDate(respText)
	if !ok {
		return "", fmt.Errorf("response is not an ISO date: %q", respText)
	}
	return date, nil
}

// NormalizeDate trims model noise around a reply and checks it is a real
// YYYY-MM-DD calendar date.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "`\"' \n\t.")
	if len(s) != len(isoDateLayout) {
		return types.UnknownDate, false
	}

	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return types.UnknownDate, false
	}
	return t.Format(isoDateLayout), true
}

// Enrich resolves FirstDate for every record. Output order matches input
// order regardless of the number of workers.
func (e *DateExtractor) Enrich(ctx context.Context, records []types.EventRecord) []types.EnrichedEventRecord {
	enriched := make([]types.EnrichedEventRecord, len(records))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for i, rec := range records {
		g.Go(func() error {
			enriched[i] = types.EnrichedEventRecord{
				EventRecord: rec,
				FirstDate:   e.ExtractFirstDate(ctx, rec.DatesDetail),
			}
			return nil
		})
	}
	_ = g.Wait()

	unknown := 0
	for _, r := range enriched {
		if !r.HasDate() {
			unknown++
		}
	}
	e.cfg.Logger.Info("ai: enriched records", "total", len(enriched), "unknown_dates", unknown)

	return enriched
}
