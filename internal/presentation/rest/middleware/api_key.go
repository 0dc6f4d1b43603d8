package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
	"recharge-server/internal/presentation/allowlist"
)

// APIKeyHeader 管理APIキーのヘッダー名
const APIKeyHeader = "X-API-Key"

// RequesterKey 管理API呼び出し元（クライアントIP）を保持するechoコンテキストのキー
const RequesterKey = "requester"

// APIKeyMiddleware 管理APIのAPIキー認証ミドルウェア
func APIKeyMiddleware(cfg *config.AdminAPIConfig, logger *otelinfra.Logger) echo.MiddlewareFunc {
	allowed := allowlist.Parse(cfg.AllowedIPs)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if !cfg.Enabled {
				logger.Warn(ctx, "Admin API is disabled", nil)
				return c.JSON(http.StatusForbidden, NewErrorResponse("Admin API is disabled", "forbidden"))
			}

			apiKey := c.Request().Header.Get(APIKeyHeader)
			if apiKey == "" {
				logger.Warn(ctx, "Missing X-API-Key header", nil)
				return c.JSON(http.StatusUnauthorized, NewErrorResponse("Missing X-API-Key header", "unauthorized"))
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
				logger.Warn(ctx, "Invalid API key", nil)
				return c.JSON(http.StatusUnauthorized, NewErrorResponse("Invalid API key", "unauthorized"))
			}

			clientIP := c.RealIP()
			if !allowed.Allows(clientIP) {
				logger.Warn(ctx, "IP address not allowed", map[string]interface{}{
					"ip": clientIP,
				})
				return c.JSON(http.StatusForbidden, NewErrorResponse("IP address not allowed", "forbidden"))
			}

			c.Set(RequesterKey, "admin@"+clientIP)
			return next(c)
		}
	}
}
