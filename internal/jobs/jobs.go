/*
Package jobs manages the per-run job directory holding the run log and the
scraped and enriched artifacts.
*/
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	RawArtifactName      = "eventbrite_classes_raw.json"
	EnrichedArtifactName = "eventbrite_classes_enriched.json"
	LogFileName          = "class-monitor.log"
	MetricsFileName      = "metrics.prom"
	ScreenshotName       = "debug_screenshot.png"

	dirLayout = "2006-01-02_15-04-05"
)

type Job struct {
	dir string
}

// New creates jobs/<date>_<time> under root, stamped in loc.
func New(root string, now time.Time, loc *time.Location) (*Job, error) {
	if loc == nil {
		loc = time.UTC
	}
	dir := filepath.Join(root, now.In(loc).Format(dirLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job directory %s: %w", dir, err)
	}
	return &Job{dir: dir}, nil
}

// Open wraps an existing job directory.
func Open(dir string) *Job {
	return &Job{dir: dir}
}

func (j *Job) Dir() string {
	return j.dir
}

func (j *Job) Path(name string) string {
	return filepath.Join(j.dir, name)
}

// OpenLog opens the run log for appending.
func (j *Job) OpenLog() (*os.File, error) {
	f, err := os.OpenFile(j.Path(LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// WriteJSON writes v as indented JSON. Nil slices are written as [].
func (j *Job) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	if err := os.WriteFile(j.Path(name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ReadJSON decodes an artifact written by WriteJSON.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}
