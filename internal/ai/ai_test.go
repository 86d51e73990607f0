package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shanehull/classmonitor/internal/types"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	delay   time.Duration
	calls   []string
	configs []*genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	prompt := contents[len(contents)-1].Parts[0].Text

	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.configs = append(f.configs, config)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	reply := ""
	for detail, r := range f.replies {
		if prompt == buildUserPrompt(detail) {
			reply = r
		}
	}
	return textResponse(reply), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func quietConfig() Config {
	return Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
}

var isoOrUnknown = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})?$`)

func TestExtractFirstDate(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		reply  string
		err    error
		want   string
	}{
		{name: "plain date", detail: "Sat, Jul 5, 9:00 AM + 1 more", reply: "2025-07-05", want: "2025-07-05"},
		{name: "reply with whitespace", detail: "Sun, Jun 1", reply: "  2025-06-01\n", want: "2025-06-01"},
		{name: "reply in backticks", detail: "Sun, Jun 1", reply: "`2025-06-01`", want: "2025-06-01"},
		{name: "reply with prose", detail: "Sun, Jun 1", reply: "The first date is 2025-06-01", want: types.UnknownDate},
		{name: "impossible date", detail: "Feb 30", reply: "2025-02-30", want: types.UnknownDate},
		{name: "non padded date", detail: "Jun 1", reply: "2025-6-1", want: types.UnknownDate},
		{name: "empty reply", detail: "Unknown Date", reply: "", want: types.UnknownDate},
		{name: "api error", detail: "Jul 5", err: errors.New("quota exceeded"), want: types.UnknownDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{replies: map[string]string{tt.detail: tt.reply}, err: tt.err}
			e := NewDateExtractorWithGenerator(gen, quietConfig())

			got := e.ExtractFirstDate(context.Background(), tt.detail)

			require.Equal(t, tt.want, got)
			require.Regexp(t, isoOrUnknown, got)
			require.Len(t, gen.calls, 1)
		})
	}
}

func TestExtractFirstDate_EmptyInputSkipsCall(t *testing.T) {
	gen := &fakeGenerator{}
	e := NewDateExtractorWithGenerator(gen, quietConfig())

	for _, detail := range []string{"", "   ", "\n\t"} {
		require.Equal(t, types.UnknownDate, e.ExtractFirstDate(context.Background(), detail))
	}
	require.Empty(t, gen.calls)
}

func TestExtractFirstDate_DeterministicRequest(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]string{"Jul 5": "2025-07-05"}}
	e := NewDateExtractorWithGenerator(gen, quietConfig())

	e.ExtractFirstDate(context.Background(), "Jul 5")

	require.Len(t, gen.configs, 1)
	cfg := gen.configs[0]
	require.NotNil(t, cfg.Temperature)
	require.Equal(t, float32(0), *cfg.Temperature)
	require.NotNil(t, cfg.SystemInstruction)
	require.Contains(t, cfg.SystemInstruction.Parts[0].Text, "YYYY-MM-DD")
	require.Contains(t, cfg.SystemInstruction.Parts[0].Text, "2025-05-01")
}

func TestExtractFirstDate_Timeout(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]string{"Jul 5": "2025-07-05"}, delay: time.Second}
	cfg := quietConfig()
	cfg.Timeout = 10 * time.Millisecond
	e := NewDateExtractorWithGenerator(gen, cfg)

	require.Equal(t, types.UnknownDate, e.ExtractFirstDate(context.Background(), "Jul 5"))
}

func TestNewDateExtractor_NoAPIKey(t *testing.T) {
	e, err := NewDateExtractor(context.Background(), quietConfig())
	require.NoError(t, err)
	require.False(t, e.Enabled())

	enriched := e.Enrich(context.Background(), []types.EventRecord{
		{Title: "August Weekend Class", DatesDetail: "Sun, Jun 1", Status: "Available"},
	})
	require.Len(t, enriched, 1)
	require.Equal(t, types.UnknownDate, enriched[0].FirstDate)
}

func TestEnrich_PreservesOrder(t *testing.T) {
	records := []types.EventRecord{
		{Title: "A", DatesDetail: "Jul 5", Status: "Available"},
		{Title: "B", DatesDetail: "", Status: "Sold Out"},
		{Title: "C", DatesDetail: "Jun 1", Status: "Available"},
		{Title: "D", DatesDetail: "garbled", Status: "Not Yet On Sale"},
	}
	replies := map[string]string{
		"Jul 5":   "2025-07-05",
		"Jun 1":   "2025-06-01",
		"garbled": "no idea",
	}

	for _, workers := range []int{1, 4} {
		gen := &fakeGenerator{replies: replies, delay: time.Millisecond}
		cfg := quietConfig()
		cfg.Workers = workers
		e := NewDateExtractorWithGenerator(gen, cfg)

		enriched := e.Enrich(context.Background(), records)

		require.Len(t, enriched, len(records))
		for i, r := range enriched {
			require.Equal(t, records[i], r.EventRecord)
		}
		require.Equal(t, "2025-07-05", enriched[0].FirstDate)
		require.Equal(t, types.UnknownDate, enriched[1].FirstDate)
		require.Equal(t, "2025-06-01", enriched[2].FirstDate)
		require.Equal(t, types.UnknownDate, enriched[3].FirstDate)
		require.Len(t, gen.calls, 3, "empty descriptor must not reach the model")
	}
}

func TestEnrich_Empty(t *testing.T) {
	e := NewDateExtractorWithGenerator(&fakeGenerator{}, quietConfig())
	enriched := e.Enrich(context.Background(), nil)
	require.NotNil(t, enriched)
	require.Empty(t, enriched)
}
