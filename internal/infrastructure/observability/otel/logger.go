package otel

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger トレースコンテキスト付きの構造化ロガー
type Logger struct {
	tracer trace.Tracer
	zap    *zap.Logger
}

// NewLogger 新しいLoggerを作成（infoレベル、JSON出力）
func NewLogger(tracer trace.Tracer) *Logger {
	l, err := NewLoggerWithLevel(tracer, "info")
	if err != nil {
		return NewLoggerWithZap(tracer, zap.NewNop())
	}
	return l
}

// NewLoggerWithLevel ログレベルを指定してLoggerを作成
func NewLoggerWithLevel(tracer trace.Tracer, level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return NewLoggerWithZap(tracer, z), nil
}

// NewLoggerWithZap 既存のzap.LoggerからLoggerを作成
func NewLoggerWithZap(tracer trace.Tracer, z *zap.Logger) *Logger {
	return &Logger{
		tracer: tracer,
		zap:    z,
	}
}

// LogLevel ログレベル
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// Log ログを出力
func (l *Logger) Log(ctx context.Context, level LogLevel, message string, fields map[string]interface{}) {
	zf := l.fields(ctx, fields)

	switch level {
	case LogLevelDebug:
		l.zap.Debug(message, zf...)
	case LogLevelWarn:
		l.zap.Warn(message, zf...)
	case LogLevelError:
		l.zap.Error(message, zf...)
	default:
		l.zap.Info(message, zf...)
	}
}

// fields トレースIDとSpanIDを付与してzapフィールドに変換
func (l *Logger) fields(ctx context.Context, fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields)+2)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		zf = append(zf,
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	return zf
}

// Debug Debugレベルのログを出力
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.Log(ctx, LogLevelDebug, message, fields)
}

// Info Infoレベルのログを出力
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.Log(ctx, LogLevelInfo, message, fields)
}

// Warn Warnレベルのログを出力
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.Log(ctx, LogLevelWarn, message, fields)
}

// Error Errorレベルのログを出力
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	if err != nil {
		merged["error"] = err.Error()
	}
	l.Log(ctx, LogLevelError, message, merged)
}

// Sync バッファされたログを書き出す
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
