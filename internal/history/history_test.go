package history

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shanehull/classmonitor/internal/types"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", DefaultStateFileName)
	m, err := NewManager(path, DefaultClassCount, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m
}

func TestLoad_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing file"},
		{name: "empty file", content: ptr("")},
		{name: "not json", content: ptr("class_count=30")},
		{name: "wrong type", content: ptr(`{"class_count": "thirty"}`)},
		{name: "missing field", content: ptr(`{}`)},
		{name: "negative count", content: ptr(`{"class_count": -4}`)},
		{name: "json array", content: ptr(`[30]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(m.StateFilePath(), []byte(*tt.content), 0o644))
			}

			require.Equal(t, DefaultClassCount, m.Load())
		})
	}
}

func TestLoad_UnreadablePath(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.Mkdir(m.StateFilePath(), 0o755))

	require.Equal(t, DefaultClassCount, m.Load())
}

func TestSaveLoad(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Save(30))
	require.Equal(t, 30, m.Load())

	require.NoError(t, m.Save(0))
	require.Equal(t, 0, m.Load())
}

func TestSave_OverwritesWholeFile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(m.StateFilePath(), []byte(`{"class_count": 12, "extra": true}`), 0o644))

	require.NoError(t, m.Save(31))

	data, err := os.ReadFile(m.StateFilePath())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, map[string]any{"class_count": float64(31)}, got)

	var state types.MonitorState
	require.NoError(t, json.Unmarshal(data, &state))
	require.Equal(t, types.MonitorState{ClassCount: 31}, state)

	entries, err := os.ReadDir(filepath.Dir(m.StateFilePath()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager("", DefaultClassCount, nil)
	require.Error(t, err)

	_, err = NewManager(filepath.Join(t.TempDir(), "s.json"), -1, nil)
	require.Error(t, err)
}

func ptr(s string) *string {
	return &s
}
