package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger owns the process logger. Components receive Underlying().
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger from cfg. provider may be nil, in which case
// OTEL output is skipped even when enabled.
func NewLogger(cfg *Config, provider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	enc, err := newScrubEncoder(newEncoder(cfg.Format), cfg.SecretKeys, cfg.SecretPatterns)
	if err != nil {
		return nil, err
	}
	var out zapcore.WriteSyncer = os.Stdout
	if cfg.Stderr {
		out = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.Lock(out), cfg.Level)

	if cfg.OTEL && provider != nil {
		bridge := otelzap.NewCore(cfg.Service, otelzap.WithLoggerProvider(provider))
		core = zapcore.NewTee(core, gated{bridge, cfg.Level})
	}
	core = sampled(core, cfg.Sampling)

	z := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if cfg.Service != "" {
		z = z.With(zap.String("service", cfg.Service))
	}
	return &Logger{zap: z}, nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = encodeLevel
	if format == "console" {
		ec.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			if l == TraceLevel {
				enc.AppendString("TRACE")
				return
			}
			zapcore.CapitalColorLevelEncoder(l, enc)
		}
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// sampled samples entries below warn level and passes the rest through.
func sampled(core zapcore.Core, s Sampling) zapcore.Core {
	if s.Tick <= 0 || s.Initial <= 0 {
		return core
	}
	below := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l < zapcore.WarnLevel })
	return zapcore.NewTee(
		gated{core, zapcore.WarnLevel},
		zapcore.NewSamplerWithOptions(gated{core, below}, s.Tick, s.Initial, s.Thereafter),
	)
}

// gated restricts a core to the levels allowed by enabler.
type gated struct {
	zapcore.Core
	enabler zapcore.LevelEnabler
}

func (g gated) Enabled(l zapcore.Level) bool {
	return g.enabler.Enabled(l) && g.Core.Enabled(l)
}

func (g gated) With(fields []zapcore.Field) zapcore.Core {
	return gated{g.Core.With(fields), g.enabler}
}

func (g gated) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.Enabled(e.Level) {
		return ce
	}
	return g.Core.Check(e, ce)
}

// Underlying returns the zap logger handed to components.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// For returns the logger with the correlation fields of ctx.
func (l *Logger) For(ctx context.Context) *zap.Logger {
	return For(ctx, l.zap)
}

// Named returns a child logger for a subsystem.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Sync flushes buffered entries. The EINVAL and ENOTTY errors returned
// when syncing a terminal are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
