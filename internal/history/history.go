/*
Package history persists the class count seen by the previous run.
*/
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shanehull/classmonitor/internal/types"
)

const (
	DefaultStateFileName = "eventbrite_state.json"
	// DefaultClassCount is assumed when no usable state exists, so a first
	// run or lost state does not trigger a count-change alert storm.
	DefaultClassCount = 28
)

type Manager struct {
	stateFilePath string
	defaultCount  int
	logger        *slog.Logger
}

func NewManager(stateFilePath string, defaultCount int, logger *slog.Logger) (*Manager, error) {
	if stateFilePath == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if defaultCount < 0 {
		return nil, fmt.Errorf("default class count must not be negative, got %d", defaultCount)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(stateFilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory for %s: %w", stateFilePath, err)
	}

	return &Manager{
		stateFilePath: stateFilePath,
		defaultCount:  defaultCount,
		logger:        logger,
	}, nil
}

// Load returns the previously saved class count, falling back to the default
// when the state file is missing or unusable.
func (m *Manager) Load() int {
	data, err := os.ReadFile(m.stateFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn("history: state file not found, using default count",
				"path", m.stateFilePath, "default", m.defaultCount)
			return m.defaultCount
		}
		m.logger.Warn("history: failed to read state file, using default count",
			"path", m.stateFilePath, "default", m.defaultCount, "error", err)
		return m.defaultCount
	}

	var raw struct {
		ClassCount *int `json:"class_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		m.logger.Warn("history: failed to unmarshal state, using default count",
			"path", m.stateFilePath, "default", m.defaultCount, "error", err)
		return m.defaultCount
	}
	if raw.ClassCount == nil || *raw.ClassCount < 0 {
		m.logger.Warn("history: state has no valid class_count, using default count",
			"path", m.stateFilePath, "default", m.defaultCount)
		return m.defaultCount
	}

	m.logger.Info("history: loaded state", "path", m.stateFilePath, "class_count", *raw.ClassCount)
	return *raw.ClassCount
}

// Save replaces the state file with the given count.
func (m *Manager) Save(count int) error {
	data, err := json.MarshalIndent(types.MonitorState{ClassCount: count}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.stateFilePath), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set state file permissions: %w", err)
	}
	if err := os.Rename(tmpName, m.stateFilePath); err != nil {
		return fmt.Errorf("failed to replace state file %s: %w", m.stateFilePath, err)
	}

	m.logger.Info("history: saved state", "path", m.stateFilePath, "class_count", count)
	return nil
}

func (m *Manager) StateFilePath() string {
	return m.stateFilePath
}
