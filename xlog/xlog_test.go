package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xslot/lib/infra"
)

type testMemOutWriter struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (w *testMemOutWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.Write(p)
}

func (w *testMemOutWriter) Sync() error { return nil }

func (w *testMemOutWriter) String() string {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.String()
}

func (w *testMemOutWriter) lines(t *testing.T) []map[string]any {
	t.Helper()
	res := make([]map[string]any, 0, 8)
	for _, line := range strings.Split(strings.TrimSpace(w.String()), "\n") {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		res = append(res, m)
	}
	return res
}

func testMemLogger(t *testing.T, opts ...XLoggerOption) (XLogger, *testMemOutWriter) {
	t.Helper()
	w := &testMemOutWriter{}
	registerOutWriter(testMemAsOut, w)
	opts = append([]XLoggerOption{
		WithXLoggerWriter(testMemAsOut),
		WithXLoggerEncoder(JSON),
	}, opts...)
	return NewXLogger(opts...), w
}

func TestLogLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LogLevelDebug.String())
	require.Equal(t, "INFO", LogLevelInfo.String())
	require.Equal(t, "WARN", LogLevelWarn.String())
	require.Equal(t, "ERROR", LogLevelError.String())
	require.Equal(t, zapcore.DebugLevel, LogLevelDebug.zapLevel())
	require.Equal(t, zapcore.InfoLevel, LogLevelInfo.zapLevel())
	require.Equal(t, zapcore.WarnLevel, LogLevelWarn.zapLevel())
	require.Equal(t, zapcore.ErrorLevel, LogLevelError.zapLevel())

	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefault(""))
	require.Equal(t, zapcore.InfoLevel, getLogLevelOrDefault("info"))
	require.Equal(t, zapcore.WarnLevel, getLogLevelOrDefault("WARN"))
	require.Equal(t, zapcore.ErrorLevel, getLogLevelOrDefault("Error"))
	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefault("verbose"))
}

type testBanner struct{}

func (b testBanner) JSON() string {
	return "{\"app\":\"xslot\"}"
}

func (b testBanner) PlainText() string {
	return "xslot"
}

func TestLoggerPrintBanner(t *testing.T) {
	printBanner = sync.Once{}
	logger, w := testMemLogger(t)
	logger.Banner(testBanner{})
	require.Equal(t, "{\"banner\":\"{\\\"app\\\":\\\"xslot\\\"}\"}\n", w.String())

	// Printed once per process.
	logger.Banner(testBanner{})
	require.Equal(t, "{\"banner\":\"{\\\"app\\\":\\\"xslot\\\"}\"}\n", w.String())

	printBanner = sync.Once{}
	logger, w = testMemLogger(t, WithXLoggerEncoder(PlainText))
	logger.Banner(testBanner{})
	require.Equal(t, "xslot\n", w.String())
}

func TestXLoggerOptions(t *testing.T) {
	require.Panics(t, func() {
		NewXLogger(WithXLoggerWriter(_writerMax))
	})
	require.Panics(t, func() {
		NewXLogger(WithXLoggerEncoder(_encMax))
	})

	logger, _ := testMemLogger(t, WithXLoggerStrLevel("warn"), nil)
	require.Equal(t, "warn", logger.Level())
	logger.IncreaseLogLevel(zapcore.ErrorLevel)
	require.Equal(t, "error", logger.Level())
}

func TestXLogger_Levels(t *testing.T) {
	logger, w := testMemLogger(t, WithXLoggerLevel(LogLevelInfo))
	logger.Debug("dropped")
	logger.Info("info", zap.Int("trial", 1))
	logger.Warn("warn")
	logger.Error(infra.NewErrorStack("boom"), "error")
	logger.Logf(zapcore.InfoLevel, "trial %d done", 2)

	logger.IncreaseLogLevel(zapcore.DebugLevel)
	logger.Debug("kept")
	require.NoError(t, logger.Sync())

	lines := w.lines(t)
	require.Len(t, lines, 5)
	require.Equal(t, "info", lines[0]["msg"])
	require.Equal(t, "INFO", lines[0]["lvl"])
	require.Equal(t, float64(1), lines[0]["trial"])
	require.Contains(t, lines[0]["callAt"], "xlog_test.go")
	require.Equal(t, "WARN", lines[1]["lvl"])
	require.Equal(t, "boom", lines[2]["error"])
	require.NotContains(t, lines[2], "errorStack")
	require.Equal(t, "trial 2 done", lines[3]["msg"])
	require.Equal(t, "kept", lines[4]["msg"])
	require.Equal(t, "DEBUG", lines[4]["lvl"])
}

func TestXLogger_ErrorStack(t *testing.T) {
	logger, w := testMemLogger(t)
	logger.ErrorStack(infra.NewErrorStack("[xslot] exhausted"), "insert failed")
	logger.ErrorStack(context.Canceled, "plain error")
	logger.ErrorStack(infra.WrapErrorStack(context.DeadlineExceeded), "trial 3")

	lines := w.lines(t)
	require.Len(t, lines, 3)
	require.Equal(t, "insert failed", lines[0]["msg"])
	require.Equal(t, "[xslot] exhausted", lines[0]["error"])
	stack, ok := lines[0]["errorStack"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, stack)
	require.Contains(t, stack[0], "TestXLogger_ErrorStack")

	require.Equal(t, context.Canceled.Error(), lines[1]["error"])
	require.NotContains(t, lines[1], "errorStack")

	require.Equal(t, "trial 3", lines[2]["msg"])
	require.Contains(t, lines[2], "errorStack")
}

func TestXLogger_ContextFields(t *testing.T) {
	logger, w := testMemLogger(t,
		WithXLoggerContextFieldExtract("traceId", "TraceID"),
		WithXLoggerContextFieldExtract("trial"),
		WithXLoggerContextFieldExtract("secret", ContextKeyMapToOmitempty),
		WithXLoggerContextFieldExtract(""),
	)
	ctx := context.WithValue(context.Background(), ContextKey("traceId"), "t-1")
	ctx = context.WithValue(ctx, ContextKey("secret"), "s")

	logger.InfoContext(ctx, "info")
	logger.WarnContext(ctx, "warn")
	logger.ErrorStackContext(ctx, context.Canceled, "error")
	logger.ErrorStackContext(ctx, infra.NewErrorStack("boom"), "stack")
	logger.InfoContext(context.Background(), "no context")

	lines := w.lines(t)
	require.Len(t, lines, 5)
	for _, line := range lines[:4] {
		require.Equal(t, "t-1", line["TraceID"])
		require.Equal(t, "nil", line["trial"])
		require.NotContains(t, line, "secret")
		require.NotContains(t, line, "_")
		require.Contains(t, line["callAt"], "xlog_test.go")
	}
	require.Equal(t, context.Canceled.Error(), lines[2]["error"])
	require.NotContains(t, lines[2], "errorStack")
	require.Equal(t, "boom", lines[3]["error"])
	require.Contains(t, lines[3], "errorStack")
	require.Equal(t, "nil", lines[4]["TraceID"])
}

func TestXLogger_ContextFieldsNumeric(t *testing.T) {
	logger, w := testMemLogger(t, WithXLoggerContextFieldExtract("trial"))
	child := logger.Named("bench")
	for trial := 1; trial <= 2; trial++ {
		ctx := context.WithValue(context.Background(), ContextKey("trial"), trial)
		child.InfoContext(ctx, "trial done")
	}

	lines := w.lines(t)
	require.Len(t, lines, 2)
	require.Equal(t, float64(1), lines[0]["trial"])
	require.Equal(t, float64(2), lines[1]["trial"])
	require.Equal(t, "bench", lines[1]["component"])
}

func TestXLogger_Named(t *testing.T) {
	logger, w := testMemLogger(t, WithXLoggerLevel(LogLevelInfo))
	child := logger.Named("bench")
	child.Debug("dropped")
	child.Info("trial")

	// The child follows the parent's level.
	logger.IncreaseLogLevel(zapcore.DebugLevel)
	child.Debug("kept")

	lines := w.lines(t)
	require.Len(t, lines, 2)
	require.Equal(t, "bench", lines[0]["component"])
	require.Equal(t, "kept", lines[1]["msg"])
}

func TestXLogger_DataRace(t *testing.T) {
	logger, w := testMemLogger(t)
	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				logger.Info("race", zap.Int("g", i), zap.Int("j", j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j&1 == 0 {
					logger.IncreaseLogLevel(zapcore.DebugLevel)
				} else {
					logger.IncreaseLogLevel(zapcore.InfoLevel)
				}
			}
		}()
	}
	wg.Wait()
	require.Len(t, w.lines(t), 200)
}
