package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	historyapp "recharge-server/internal/application/history"
	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
	"recharge-server/internal/presentation/rest/handler"
	restmiddleware "recharge-server/internal/presentation/rest/middleware"
)

// HealthChecker 依存先の疎通確認
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies ルーターが利用するサービス
type Dependencies struct {
	Settler        handler.Settler
	Ledger         handler.BalanceLedger
	HistoryService *historyapp.HistoryApplicationService
	Tokens         handler.TokenIssuer
	Health         HealthChecker // nil の場合は常に healthy
}

// Router REST APIルーター
type Router struct {
	echo *echo.Echo
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	deps Dependencies,
) *Router {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// 管理APIの許可リストは接続元アドレスで判定する
	e.IPExtractor = echo.ExtractIPDirect()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// ErrorHandlerMiddleware を抜けたエラー（パニック復帰など）の最終処理
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		_ = c.JSON(http.StatusInternalServerError, restmiddleware.NewErrorResponse("An unexpected error occurred", "PersistenceError"))
	}

	setupMiddleware(e, logger, metrics)

	rechargeHandler := handler.NewRechargeHandler(deps.Settler)
	balanceHandler := handler.NewBalanceHandler(deps.Ledger)
	historyHandler := handler.NewHistoryHandler(deps.HistoryService)
	authHandler := handler.NewAuthHandler(deps.Tokens)

	setupRoutes(e, cfg, logger, deps.Health, rechargeHandler, balanceHandler, historyHandler, authHandler)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{echo: e}
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, restmiddleware.IdempotencyKeyHeader, restmiddleware.APIKeyHeader},
		ExposeHeaders: []string{echo.HeaderXRequestID, restmiddleware.IdempotencyKeyHeader},
	}))

	e.Use(middleware.RequestID())
	e.Use(restmiddleware.SecurityHeadersMiddleware())
	e.Use(restmiddleware.TracingMiddleware())
	e.Use(restmiddleware.LoggingMiddleware(logger))
	e.Use(restmiddleware.MetricsMiddleware(metrics))

	// 最も内側でドメインエラーをJSONレスポンスに変換する
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *otelinfra.Logger,
	health HealthChecker,
	rechargeHandler *handler.RechargeHandler,
	balanceHandler *handler.BalanceHandler,
	historyHandler *handler.HistoryHandler,
	authHandler *handler.AuthHandler,
) {
	api := e.Group("/api/v1")

	// 認証が必要なエンドポイント
	authGroup := api.Group("", restmiddleware.AuthMiddleware(&cfg.JWT, logger))
	authGroup.POST("/recharge", rechargeHandler.Recharge)
	authGroup.GET("/users/me/balance", balanceHandler.GetBalance)
	authGroup.GET("/users/me/transactions", historyHandler.GetTransactionHistory)

	// 管理API
	adminGroup := api.Group("/admin", restmiddleware.APIKeyMiddleware(&cfg.AdminAPI, logger))
	adminGroup.GET("/users/:user_id/balance", balanceHandler.GetBalanceAdmin)
	adminGroup.POST("/users/:user_id/credit", balanceHandler.CreditAdmin)
	adminGroup.GET("/users/:user_id/transactions", historyHandler.GetTransactionHistoryAdmin)
	adminGroup.POST("/users/:user_id/token", authHandler.IssueTokenAdmin)

	// ヘルスチェックエンドポイント（認証不要）
	e.GET("/health", func(c echo.Context) error {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := health.HealthCheck(ctx); err != nil {
				logger.Warn(ctx, "Health check failed", map[string]interface{}{"error": err.Error()})
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler http.Handlerとして返す
func (r *Router) Handler() http.Handler {
	return r.echo
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown 処理中のリクエストを待ってサーバーを停止
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}
