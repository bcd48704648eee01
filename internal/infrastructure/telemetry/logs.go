package telemetry

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap/zapcore"
)

// ZapCore returns a zap core that ships entries at or above min to the OTLP
// log exporter, named scope. Tee it with the local core. A disabled provider
// yields a no-op core.
func (p *LoggerProvider) ZapCore(scope string, min zapcore.LevelEnabler) zapcore.Core {
	if !p.IsEnabled() {
		return zapcore.NewNopCore()
	}
	return &gatedCore{
		Core:  otelzap.NewCore(scope, otelzap.WithLoggerProvider(p.provider)),
		level: min,
	}
}

// gatedCore puts a minimum level in front of otelzap, which has none of its own
type gatedCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c *gatedCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *gatedCore) With(fields []zapcore.Field) zapcore.Core {
	return &gatedCore{Core: c.Core.With(fields), level: c.level}
}

func (c *gatedCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.level.Enabled(e.Level) {
		return c.Core.Check(e, ce)
	}
	return ce
}
