package middleware

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recharge-server/internal/infrastructure/config"
)

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		apiKey        string
		clientIP      string
		config        *config.AdminAPIConfig
		wantStatus    int
		wantRequester string
	}{
		{
			name:          "正常系: 有効なAPIキー",
			apiKey:        "test-api-key",
			clientIP:      "192.0.2.10",
			config:        &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key"},
			wantStatus:    http.StatusOK,
			wantRequester: "admin@192.0.2.10",
		},
		{
			name:       "異常系: APIキーが空",
			config:     &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "異常系: APIキーが不一致",
			apiKey:     "wrong",
			config:     &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "異常系: 管理APIが無効",
			apiKey:     "test-api-key",
			config:     &config.AdminAPIConfig{Enabled: false, APIKey: "test-api-key"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:     "正常系: 許可リストのIPと一致",
			apiKey:   "test-api-key",
			clientIP: "10.0.0.5",
			config: &config.AdminAPIConfig{
				Enabled:    true,
				APIKey:     "test-api-key",
				AllowedIPs: []string{"10.0.0.5"},
			},
			wantStatus:    http.StatusOK,
			wantRequester: "admin@10.0.0.5",
		},
		{
			name:     "正常系: 許可リストのCIDRに含まれる",
			apiKey:   "test-api-key",
			clientIP: "10.1.2.3",
			config: &config.AdminAPIConfig{
				Enabled:    true,
				APIKey:     "test-api-key",
				AllowedIPs: []string{"bogus", "10.0.0.0/8"},
			},
			wantStatus:    http.StatusOK,
			wantRequester: "admin@10.1.2.3",
		},
		{
			name:     "異常系: 許可リストにないIP",
			apiKey:   "test-api-key",
			clientIP: "203.0.113.9",
			config: &config.AdminAPIConfig{
				Enabled:    true,
				APIKey:     "test-api-key",
				AllowedIPs: []string{"10.0.0.0/8"},
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newObservedLogger(t)
			c, rec := newContext(http.MethodPost, "/api/v1/admin/users/user_1/credit")
			if tt.apiKey != "" {
				c.Request().Header.Set(APIKeyHeader, tt.apiKey)
			}
			if tt.clientIP != "" {
				c.Request().Header.Set(echo.HeaderXRealIP, tt.clientIP)
			}

			var requester string
			handler := APIKeyMiddleware(tt.config, logger)(func(c echo.Context) error {
				requester, _ = c.Get(RequesterKey).(string)
				return c.String(http.StatusOK, "ok")
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRequester, requester)
		})
	}
}
