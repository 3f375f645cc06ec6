package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileCopy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.Format = FormatJSON
	cfg.File = filepath.Join(t.TempDir(), "logs", "fcodec.log")

	log, flush, err := New(cfg)
	require.NoError(t, err)
	log.Debug("generated", zap.String("message", "Point"), zap.Int("bytes", 8))
	log.Info("done")
	flush()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "generated", entry["msg"])
	require.Equal(t, "Point", entry["message"])
	require.EqualValues(t, 8, entry["bytes"])
}

func TestLevelFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warn"
	cfg.File = filepath.Join(t.TempDir(), "fcodec.log")

	log, flush, err := New(cfg)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	flush()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "shown")
}

func TestBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	_, _, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Format = "xml"
	_, _, err = New(cfg)
	require.Error(t, err)
}
