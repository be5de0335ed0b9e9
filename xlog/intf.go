package xlog

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logLevel string

const (
	LogLevelDebug logLevel = "DEBUG"
	LogLevelInfo  logLevel = "INFO"
	LogLevelWarn  logLevel = "WARN"
	LogLevelError logLevel = "ERROR"
)

var zapLevels = map[logLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// zapLevel falls back to debug for unknown names.
func (lvl logLevel) zapLevel() zapcore.Level {
	if zl, ok := zapLevels[lvl]; ok {
		return zl
	}
	return zapcore.DebugLevel
}

func (lvl logLevel) String() string {
	return string(lvl)
}

type logEncoderType uint8

const (
	JSON logEncoderType = iota
	PlainText
	_encMax
)

type logOutWriterType uint8

const (
	StdOut logOutWriterType = iota
	testMemAsOut
	_writerMax
)

const (
	ContextKeyMapToOmitempty = "_"
	ContextKeyMapToItself    = ""
	coreKeyIgnored           = ""
)

var (
	outWritersLock sync.RWMutex
	outWriters     = [_writerMax]zapcore.WriteSyncer{
		StdOut: zapcore.Lock(os.Stdout),
	}
)

// registerOutWriter replaces the sink behind typ for the loggers built
// afterwards.
func registerOutWriter(typ logOutWriterType, ws zapcore.WriteSyncer) {
	outWritersLock.Lock()
	defer outWritersLock.Unlock()
	outWriters[typ] = ws
}

func getOutWriterByType(typ logOutWriterType) zapcore.WriteSyncer {
	outWritersLock.RLock()
	defer outWritersLock.RUnlock()
	if typ < _writerMax && outWriters[typ] != nil {
		return outWriters[typ]
	}
	return outWriters[StdOut]
}

func getEncoderByType(typ logEncoderType) func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	if typ == PlainText {
		return zapcore.NewConsoleEncoder
	}
	return zapcore.NewJSONEncoder
}

type Banner interface {
	JSON() string
	PlainText() string
}

// XLogger mainly implemented by Uber zap logger.
//
// ErrorStack prints the frames carried by an infra.ErrorStack as JSON
// instead of zap's plain text stacktrace, so log aggregators can parse it.
//
// The context variants add the registered context keys (the trial number
// for instance) as fields.
type XLogger interface {
	zap() *zap.Logger

	IncreaseLogLevel(level zapcore.Level)
	Level() string
	Sync() error
	Banner(banner Banner)
	Named(name string) XLogger

	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(err error, msg string, fields ...zap.Field)
	ErrorStack(err error, msg string, fields ...zap.Field)

	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field)

	Logf(lvl zapcore.Level, format string, args ...any)
}
