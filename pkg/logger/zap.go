package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig selects the zap backend's level, encoding and sinks.
type ZapConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is json or console. Defaults to json.
	Format      string
	OutputPaths []string
}

// ZapLogger is the structured backend used by the daemon.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger from cfg with sampling off.
func NewZapLogger(cfg ZapConfig) (*ZapLogger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zcfg.Sampling = nil
	if strings.EqualFold(cfg.Format, "console") {
		zcfg.Encoding = "console"
	}
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	z, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &ZapLogger{sugar: z.Sugar()}, nil
}

// NewZapFromCore wraps an existing core. Tests use it with an observer core.
func NewZapFromCore(core zapcore.Core) *ZapLogger {
	return &ZapLogger{sugar: zap.New(core).Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Info logs at info level.
func (z *ZapLogger) Info(format string, args ...interface{}) {
	z.sugar.Infof(format, args...)
}

// Warning logs at warn level.
func (z *ZapLogger) Warning(format string, args ...interface{}) {
	z.sugar.Warnf(format, args...)
}

// Error logs at error level.
func (z *ZapLogger) Error(format string, args ...interface{}) {
	z.sugar.Errorf(format, args...)
}

// With returns a child logger that adds the key/value pairs to every entry.
func (z *ZapLogger) With(keysAndValues ...interface{}) Logger {
	return &ZapLogger{sugar: z.sugar.With(keysAndValues...)}
}

// Close flushes buffered entries. Sync errors on terminals are ignored.
func (z *ZapLogger) Close() error {
	err := z.sugar.Sync()
	if err != nil && strings.Contains(err.Error(), "inappropriate ioctl") {
		return nil
	}
	if err != nil && strings.Contains(err.Error(), "invalid argument") {
		return nil
	}
	return err
}

var _ FieldLogger = (*ZapLogger)(nil)
