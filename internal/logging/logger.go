// Package logging wraps zap for the optz command and HTTP server.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoobzio/optz"
)

// Logger wraps zap.Logger with convenience methods.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// DefaultConfig returns production-ready logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Development: false,
		OutputPaths: []string{"stderr"},
	}
}

// DevelopmentConfig returns development logger configuration.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stderr"},
	}
}

// New creates a new logger with the provided configuration.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encodingFormat(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     false,
		DisableStacktrace: !cfg.Development,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: logger}, nil
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Run logs a finished pipeline run.
func (l *Logger) Run(e optz.PipelineEvent) {
	fields := []zap.Field{
		zap.String("run_id", e.RunID),
		zap.String("pipeline", e.Name),
		zap.Stringer("language", e.Language),
		zap.Int("input_bytes", e.InputBytes),
		zap.Duration("duration", e.TotalDuration),
	}
	if !e.Success {
		l.Warn("optimization stopped", append(fields, zap.Error(e.Error))...)
		return
	}
	l.Info("optimization finished", append(fields,
		zap.Int("output_bytes", e.OutputBytes),
		zap.Int("insights", e.Insights),
	)...)
}

// Pass logs one finished pass at debug level.
func (l *Logger) Pass(e optz.PipelineEvent) {
	l.Debug("pass finished",
		zap.String("run_id", e.RunID),
		zap.String("pass", e.PassName),
		zap.Int("number", e.PassNumber),
		zap.Int("of", e.TotalPasses),
		zap.Bool("changed", e.Changed),
		zap.Duration("duration", e.Duration),
	)
}

// Diagnostics logs the diagnostics of one result.
func (l *Logger) Diagnostics(res *optz.Result) {
	for _, d := range res.Diagnostics {
		fields := []zap.Field{
			zap.String("run_id", res.RunID),
			zap.String("stage", d.Stage),
		}
		if d.Level == optz.LevelWarn {
			l.Warn(d.Message, fields...)
		} else {
			l.Debug(d.Message, fields...)
		}
	}
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// encodingFormat returns encoding format based on environment.
func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

// encoderConfig returns encoder configuration based on environment.
func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		return zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
