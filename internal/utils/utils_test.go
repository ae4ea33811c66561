package utils

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFields(t *testing.T) {
	require.NoError(t, SetupLogging(LogConfig{Level: "debug", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	NewLogger("cvedb").WithField("host", "10.0.0.5").Info("检查 %s:%d", "10.0.0.5", 80)

	out := buf.String()
	assert.Contains(t, out, `"component":"cvedb"`)
	assert.Contains(t, out, `"host":"10.0.0.5"`)
	assert.Contains(t, out, `"run_id":"`+RunID()+`"`)
	assert.Contains(t, out, "检查 10.0.0.5:80")
}

func TestLoggerLevelFilter(t *testing.T) {
	require.NoError(t, SetupLogging(LogConfig{Level: "warn", Format: "text"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	l := NewLogger("main")
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn-line")

	assert.NotContains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "warn-line")
}

func TestSetupLoggingWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	require.NoError(t, SetupLogging(LogConfig{Level: "info", File: path}))
	NewLogger("main").Info("写入文件")
	CloseLogging()
	assert.FileExists(t, path)
}

func TestRetry(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	t.Run("成功后停止", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func(error) bool { return true }, func() error {
			calls++
			if calls < 2 {
				return errTransient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("不可重试错误立即返回", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func(err error) bool { return errors.Is(err, errTransient) }, func() error {
			calls++
			return errFatal
		})
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("次数耗尽", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 2, time.Millisecond, func(error) bool { return true }, func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("零次重试", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), 0, time.Millisecond, func(error) bool { return true }, func() error {
			calls++
			return errTransient
		})
		assert.Equal(t, 1, calls)
	})
}
