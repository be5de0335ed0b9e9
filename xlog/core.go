package xlog

import (
	"go.uber.org/zap/zapcore"
)

var (
	// appKeys lay out the lines written by the application loggers.
	appKeys = zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
	// componentKeys lay out the lines of the fx and ants adapters. The
	// caller would always point at the adapter itself, so it is dropped.
	componentKeys = zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     coreKeyIgnored,
		FunctionKey:   coreKeyIgnored,
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
)

// xLogCore is a zapcore.Core that keeps its building blocks, so that it
// can be re-encoded with another key layout while sharing the writer and
// the dynamic level of the original.
type xLogCore struct {
	zapcore.Core

	lvlEnabler zapcore.LevelEnabler
	ws         zapcore.WriteSyncer
	newEnc     func(cfg zapcore.EncoderConfig) zapcore.Encoder
	lvlEnc     zapcore.LevelEncoder
	tsEnc      zapcore.TimeEncoder
}

func newXLogCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	writer logOutWriterType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
) *xLogCore {
	c := &xLogCore{
		lvlEnabler: lvlEnabler,
		ws:         getOutWriterByType(writer),
		newEnc:     getEncoderByType(encoder),
		lvlEnc:     lvlEnc,
		tsEnc:      tsEnc,
	}
	return c.withKeys(appKeys)
}

func (c *xLogCore) withKeys(keys zapcore.EncoderConfig) *xLogCore {
	keys.EncodeLevel = c.lvlEnc
	keys.EncodeTime = c.tsEnc
	rekeyed := *c
	rekeyed.Core = zapcore.NewCore(c.newEnc(keys), c.ws, c.lvlEnabler)
	return &rekeyed
}

// wrapComponentCore is the zap.WrapCore hook of the fx and ants adapters.
func wrapComponentCore(core zapcore.Core) zapcore.Core {
	c, ok := core.(*xLogCore)
	if !ok || c == nil {
		panic("[XLogger] core is not xLogCore")
	}
	return c.withKeys(componentKeys)
}
