package middleware

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		handler     echo.HandlerFunc
		wantErr     bool
		wantMessage string
		wantLevel   zapcore.Level
		wantStatus  int64
	}{
		{
			name: "正常系: 成功したリクエスト",
			handler: func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			},
			wantMessage: "HTTP request completed",
			wantLevel:   zapcore.InfoLevel,
			wantStatus:  http.StatusOK,
		},
		{
			name: "正常系: クライアントエラーのレスポンス",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusPaymentRequired, NewErrorResponse("Insufficient balance", "InsufficientBalance"))
			},
			wantMessage: "HTTP request completed",
			wantLevel:   zapcore.InfoLevel,
			wantStatus:  http.StatusPaymentRequired,
		},
		{
			name: "正常系: サーバーエラーのレスポンス",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusGatewayTimeout, NewErrorResponse("Recharge provider timed out", "ProviderTimeout"))
			},
			wantMessage: "HTTP request completed with server error",
			wantLevel:   zapcore.WarnLevel,
			wantStatus:  http.StatusGatewayTimeout,
		},
		{
			name: "異常系: ハンドラーがエラーを返す",
			handler: func(c echo.Context) error {
				return errors.New("boom")
			},
			wantErr:     true,
			wantMessage: "HTTP request failed",
			wantLevel:   zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newObservedLogger(t)
			c, _ := newContext(http.MethodPost, "/api/v1/recharge")
			c.Set(UserIDKey, "user_1")
			c.Response().Header().Set(echo.HeaderXRequestID, "req-123")

			err := LoggingMiddleware(logger)(tt.handler)(c)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			entries := logs.FilterMessage(tt.wantMessage).All()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, "POST", fields["method"])
			assert.Equal(t, "/api/v1/recharge", fields["path"])
			if !tt.wantErr {
				assert.EqualValues(t, tt.wantStatus, fields["status_code"])
			}
			assert.Equal(t, "req-123", fields["request_id"])
			assert.Equal(t, "user_1", fields["user_id"])

			assert.Equal(t, 1, logs.FilterMessage("HTTP request started").Len())
		})
	}
}

func TestLoggingMiddleware_AnonymousRequest(t *testing.T) {
	logger, logs := newObservedLogger(t)
	c, _ := newContext(http.MethodGet, "/health")

	err := LoggingMiddleware(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	require.NoError(t, err)

	entries := logs.FilterMessage("HTTP request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "user_id")
	assert.NotContains(t, fields, "request_id")
}
