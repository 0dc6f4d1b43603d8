package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// newObservedLogger ログ出力を検証できるLoggerを作成
func newObservedLogger(t *testing.T) (*otelinfra.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return otelinfra.NewLoggerWithZap(noop.NewTracerProvider().Tracer("test"), zap.New(core)), logs
}

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(httptest.NewRequest(method, target, nil), rec), rec
}
