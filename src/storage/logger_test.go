package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, env string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path, env)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger, path
}

func TestLoggerWritesJSON(t *testing.T) {
	logger, path := newTestLogger(t, "development")

	logger.Info("dataset loaded", "flights", 3, "airports", 2)
	logger.Debug("debug line")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dataset loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["flights"])
}

func TestLoggerProductionSkipsDebug(t *testing.T) {
	logger, path := newTestLogger(t, "production")

	logger.Debug("hidden")
	logger.Warning("shown")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestLoggerSubscribe(t *testing.T) {
	logger, _ := newTestLogger(t, "development")
	ch := logger.Subscribe()

	logger.Error("reload failed", "trigger", "api", "err", errors.New("boom"))

	select {
	case line := <-ch:
		assert.Contains(t, line, "ERROR: reload failed trigger=api err=boom")
	case <-time.After(time.Second):
		t.Fatal("no log line delivered")
	}

	logger.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestLoggerCheckRotate(t *testing.T) {
	logger, path := newTestLogger(t, "development")

	for i := 0; i < 20; i++ {
		logger.Info("filling the log file with a reasonably long message", "i", i)
	}

	require.NoError(t, logger.CheckRotate("2 * 64"))
	logger.Info("after rotation")
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after rotation")
	assert.NotContains(t, string(data), "filling")
}

func TestLoggerRotateRenameFailure(t *testing.T) {
	logger, path := newTestLogger(t, "development")

	for i := 0; i < 5; i++ {
		logger.Info("filling the log file with a reasonably long message", "i", i)
	}
	// 文件已被删除，改名必然失败
	require.NoError(t, os.Remove(path))

	err := logger.CheckRotate("10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "日志轮转失败")

	logger.Error("still writing")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "still writing")
}

func TestLoggerSubscriberWithFields(t *testing.T) {
	logger, _ := newTestLogger(t, "production")
	ch := logger.Subscribe()

	logger.Debug("hidden")
	logger.zl.With("request_id", "abc").Infow("served", "status", 200)

	select {
	case line := <-ch:
		assert.Contains(t, line, "INFO: served request_id=abc status=200")
	case <-time.After(time.Second):
		t.Fatal("no log line delivered")
	}
	assert.Len(t, ch, 0)
}

func TestLoggerReopen(t *testing.T) {
	logger, _ := newTestLogger(t, "development")
	other := filepath.Join(t.TempDir(), "other.log")

	require.NoError(t, logger.Reopen(other))
	logger.Info("moved")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(other)
	require.NoError(t, err)
	assert.Contains(t, string(data), "moved")
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval(""))
	assert.Equal(t, "WARNING", WARNING.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
