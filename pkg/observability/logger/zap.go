package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is a Logger implementation using uber-go/zap.
type ZapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// LogLevel represents the logging level
type LogLevel string

// Log level constants
const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

// Log format constants
const (
	JSONFormat LogFormat = "json"
	TextFormat LogFormat = "text"
)

// Config holds configuration for the logger
type Config struct {
	Level  LogLevel
	Format LogFormat
	// Output receives log entries. Defaults to os.Stderr so command output on
	// stdout stays machine readable.
	Output io.Writer
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:  InfoLevel,
		Format: JSONFormat,
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewZapLogger creates a ZapLogger. JSON and console encoders are supported;
// an unknown level falls back to info.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	encoderConfig := zapcore.EncoderConfig{
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

	var encoder zapcore.Encoder
	if cfg.Format == TextFormat {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), cfg.Level.zapLevel())
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{
		logger: logger,
		sugar:  logger.Sugar(),
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	logger := zap.NewNop()
	return &ZapLogger{logger: logger, sugar: logger.Sugar()}
}

func (l *ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{
		logger: l.logger,
		sugar:  l.sugar.With(args...),
	}
}

// WithContext adds trace_id and span_id when ctx carries a valid span context.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// Sync flushes any buffered log entries. Applications should call this before exiting.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// ParseLogLevel converts a string to a LogLevel
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return "", fmt.Errorf("invalid log level: %s", level)
	}
}

// ParseLogFormat converts a string to a LogFormat
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return JSONFormat, nil
	case "text", "console":
		return TextFormat, nil
	default:
		return "", fmt.Errorf("invalid log format: %s", format)
	}
}
