package xlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xslot/lib/infra"
)

var printBanner = sync.Once{}

var _ XLogger = (*xLogger)(nil)

// xLogger is wrapper logger of Uber zap logger.
type xLogger struct {
	logger    atomic.Pointer[zap.Logger]
	ctxKeys   []string          // sorted, read-only after construction
	ctxFields map[string]string // key -> field name
	level     zap.AtomicLevel
	writer    logOutWriterType
	encoder   logEncoderType
}

func (l *xLogger) zap() *zap.Logger {
	return l.logger.Load()
}

// IncreaseLogLevel we can increase or decrease the log level concurrently.
// Named children and the component adapters share the level.
func (l *xLogger) IncreaseLogLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

func (l *xLogger) Sync() error {
	return l.zap().Sync()
}

func (l *xLogger) Level() string {
	return l.level.Level().String()
}

func (l *xLogger) derive(logger *zap.Logger) *xLogger {
	child := &xLogger{
		ctxKeys:   l.ctxKeys,
		ctxFields: l.ctxFields,
		level:     l.level,
		writer:    l.writer,
		encoder:   l.encoder,
	}
	child.logger.Store(logger)
	return child
}

func (l *xLogger) Named(name string) XLogger {
	return l.derive(l.zap().Named(name))
}

// componentLogger backs the fx and ants adapters. It prints under name
// with the component key layout and follows the level of logger.
func componentLogger(logger XLogger, name string) XLogger {
	zl := logger.zap().Named(name).WithOptions(zap.WrapCore(wrapComponentCore))
	if xl, ok := logger.(*xLogger); ok {
		return xl.derive(zl)
	}
	l := &xLogger{level: zap.NewAtomicLevel()}
	l.logger.Store(zl)
	return l
}

// Banner is printed once per process, without level, time or caller.
func (l *xLogger) Banner(banner Banner) {
	printBanner.Do(func() {
		keys := zapcore.EncoderConfig{MessageKey: "banner"}
		text := banner.JSON()
		if l.encoder == PlainText {
			text = banner.PlainText()
		}
		core := zapcore.NewCore(
			getEncoderByType(l.encoder)(keys),
			getOutWriterByType(l.writer),
			zapcore.InfoLevel,
		)
		zap.New(core).Info(text)
	})
}

func (l *xLogger) Debug(msg string, fields ...zap.Field) {
	l.zap().Debug(msg, fields...)
}

func (l *xLogger) Info(msg string, fields ...zap.Field) {
	l.zap().Info(msg, fields...)
}

func (l *xLogger) Warn(msg string, fields ...zap.Field) {
	l.zap().Warn(msg, fields...)
}

func (l *xLogger) Error(err error, msg string, fields ...zap.Field) {
	if err != nil {
		fields = append([]zap.Field{zap.String("error", err.Error())}, fields...)
	}
	l.zap().Error(msg, fields...)
}

func (l *xLogger) ErrorStack(err error, msg string, fields ...zap.Field) {
	l.zap().Error(msg, append(errorStackFields(err), fields...)...)
}

func (l *xLogger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap().Info(msg, l.withContext(ctx, fields)...)
}

func (l *xLogger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap().Warn(msg, l.withContext(ctx, fields)...)
}

func (l *xLogger) ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	l.zap().Error(msg, l.withContext(ctx, append(errorStackFields(err), fields...))...)
}

func (l *xLogger) Logf(lvl zapcore.Level, format string, args ...any) {
	l.zap().Log(lvl, fmt.Sprintf(format, args...))
}

// errorStackFields inlines the frames of an infra.ErrorStack found in the
// chain. Other errors print their message only.
func errorStackFields(err error) []zap.Field {
	var es infra.ErrorStack
	switch {
	case errors.As(err, &es) && es != nil:
		return []zap.Field{zap.Inline(es)}
	case err != nil:
		return []zap.Field{zap.String("error", err.Error())}
	}
	return []zap.Field{}
}

// withContext prepends the registered context values to fields. A missing
// value is logged as "nil".
func (l *xLogger) withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil || len(l.ctxKeys) == 0 {
		return fields
	}
	res := make([]zap.Field, 0, len(l.ctxKeys)+len(fields))
	for _, key := range l.ctxKeys {
		name := l.ctxFields[key]
		if v := ctx.Value(ContextKey(key)); v != nil {
			res = append(res, zap.Any(name, v))
		} else {
			res = append(res, zap.String(name, "nil"))
		}
	}
	return append(res, fields...)
}

// ContextKey is the type of the context keys extracted by the logger.
type ContextKey string

type loggerCfg struct {
	ctxFields  map[string]string
	encoder    logEncoderType
	writer     logOutWriterType
	lvlEncoder zapcore.LevelEncoder
	tsEncoder  zapcore.TimeEncoder
	level      *zapcore.Level
}

type XLoggerOption func(*loggerCfg) error

// NewXLogger panics on an invalid option. Without a level option the
// XLOG_LVL environment variable is used.
func NewXLogger(opts ...XLoggerOption) XLogger {
	cfg := &loggerCfg{
		encoder:    JSON,
		writer:     StdOut,
		lvlEncoder: zapcore.CapitalLevelEncoder,
		tsEncoder:  zapcore.ISO8601TimeEncoder,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(cfg); err != nil {
			panic(err)
		}
	}
	if cfg.level == nil {
		lvl := getLogLevelOrDefault(os.Getenv("XLOG_LVL"))
		cfg.level = &lvl
	}

	xl := &xLogger{
		ctxFields: make(map[string]string, len(cfg.ctxFields)),
		level:     zap.NewAtomicLevelAt(*cfg.level),
		writer:    cfg.writer,
		encoder:   cfg.encoder,
	}
	for key, name := range cfg.ctxFields {
		if name == ContextKeyMapToOmitempty {
			continue
		}
		xl.ctxKeys = append(xl.ctxKeys, key)
		xl.ctxFields[key] = name
	}
	sort.Strings(xl.ctxKeys)

	core := newXLogCore(xl.level, cfg.encoder, cfg.writer, cfg.lvlEncoder, cfg.tsEncoder)
	// zap's own stacktrace stays off, ErrorStack carries the frames.
	xl.logger.Store(zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	))
	return xl
}

func WithXLoggerWriter(writer logOutWriterType) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if writer >= _writerMax {
			return infra.NewErrorStack("[XLogger] unknown writer")
		}
		cfg.writer = writer
		return nil
	}
}

func WithXLoggerEncoder(logEnc logEncoderType) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if logEnc >= _encMax {
			return infra.NewErrorStack("[XLogger] unknown encoder")
		}
		cfg.encoder = logEnc
		return nil
	}
}

func WithXLoggerLevel(lvl logLevel) XLoggerOption {
	return func(cfg *loggerCfg) error {
		_lvl := lvl.zapLevel()
		cfg.level = &_lvl
		return nil
	}
}

// WithXLoggerStrLevel parses the level name, as read from configuration.
func WithXLoggerStrLevel(lvl string) XLoggerOption {
	return func(cfg *loggerCfg) error {
		_lvl := getLogLevelOrDefault(lvl)
		cfg.level = &_lvl
		return nil
	}
}

func WithXLoggerLevelEncoder(lvlEnc zapcore.LevelEncoder) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if lvlEnc != nil {
			cfg.lvlEncoder = lvlEnc
		}
		return nil
	}
}

func WithXLoggerTimeEncoder(tsEnc zapcore.TimeEncoder) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if tsEnc != nil {
			cfg.tsEncoder = tsEnc
		}
		return nil
	}
}

// WithXLoggerContextFieldExtract registers a context key whose value is
// logged by the *Context methods under mapTo (default: the key itself).
// Mapping to ContextKeyMapToOmitempty suppresses the field.
func WithXLoggerContextFieldExtract(field string, mapTo ...string) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if len(field) == 0 {
			return nil
		}
		if cfg.ctxFields == nil {
			cfg.ctxFields = make(map[string]string, 8)
		}
		name := field
		if len(mapTo) > 0 && mapTo[0] != ContextKeyMapToItself {
			name = mapTo[0]
		}
		cfg.ctxFields[field] = name
		return nil
	}
}

func getLogLevelOrDefault(level string) zapcore.Level {
	return logLevel(strings.ToUpper(strings.TrimSpace(level))).zapLevel()
}
