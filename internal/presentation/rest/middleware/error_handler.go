package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/domain/transaction"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// NewErrorResponse 失敗レスポンスを作成
func NewErrorResponse(message, code string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message, Code: code}
}

// statusTable 精算エラーとHTTPステータスの対応
//
// message が空の場合はエラー文字列をそのまま返す。
// code が空の場合は settlement.ReasonOf で求める。
var statusTable = []struct {
	err     error
	status  int
	message string
	code    settlement.Reason
}{
	{settlement.ErrValidation, http.StatusBadRequest, "", ""},
	{settlement.ErrInvalidAmount, http.StatusBadRequest, "", ""},
	{settlement.ErrInvalidPriceFormat, http.StatusInternalServerError, "Package price is misconfigured", ""},
	{settlement.ErrAmountRequired, http.StatusBadRequest, "", ""},
	{settlement.ErrUnsupportedDirectAmount, http.StatusBadRequest, "", ""},
	{settlement.ErrMissingChargeSpecification, http.StatusBadRequest, "", ""},
	{balance.ErrInvalidAmount, http.StatusBadRequest, "", settlement.ReasonInvalidAmount},
	{balance.ErrBalanceOutOfRange, http.StatusBadRequest, "", settlement.ReasonInvalidAmount},
	{balance.ErrInvalidUserID, http.StatusBadRequest, "", settlement.ReasonValidation},
	{settlement.ErrInsufficientBalance, http.StatusPaymentRequired, "Insufficient balance", ""},
	{settlement.ErrPackageNotFound, http.StatusNotFound, "Package not found", ""},
	{settlement.ErrDuplicateAttempt, http.StatusConflict, "Recharge attempt already in progress or belongs to another request", ""},
	{transaction.ErrDuplicateAttemptID, http.StatusConflict, "Recharge attempt already in progress or belongs to another request", ""},
	{settlement.ErrProviderRejected, http.StatusInternalServerError, "Recharge was rejected by the provider", ""},
	{settlement.ErrReservationExpired, http.StatusInternalServerError, "Recharge reservation expired", ""},
	{settlement.ErrProviderTimeout, http.StatusGatewayTimeout, "Recharge provider timed out", ""},
	{settlement.ErrProviderUnreachable, http.StatusGatewayTimeout, "Recharge provider is unreachable", ""},
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if c.Response().Committed {
				return err
			}
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	// EchoのHTTPエラー（ルーティング、バインド）
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message, ok := httpErr.Message.(string)
		if !ok {
			message = http.StatusText(httpErr.Code)
		}
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     message,
		})
		return c.JSON(httpErr.Code, NewErrorResponse(message, http.StatusText(httpErr.Code)))
	}

	for _, entry := range statusTable {
		if !errors.Is(err, entry.err) {
			continue
		}
		code := entry.code.String()
		if code == "" {
			code = settlement.ReasonOf(err).String()
		}
		message := entry.message
		if message == "" {
			message = err.Error()
		}
		fields := map[string]interface{}{
			"code":  code,
			"error": err.Error(),
		}
		if entry.status >= http.StatusInternalServerError {
			logger.Error(ctx, "Request failed", err, map[string]interface{}{"code": code})
		} else {
			logger.Warn(ctx, "Request rejected", fields)
		}
		return c.JSON(entry.status, NewErrorResponse(message, code))
	}

	// 永続化エラーと予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("An unexpected error occurred", settlement.ReasonPersistence.String()))
}
