package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	restmiddleware "recharge-server/internal/presentation/rest/middleware"
)

// maxCreditReasonLength 加算理由の最大文字数
const maxCreditReasonLength = 255

// BalanceLedger 残高の参照と加算
type BalanceLedger interface {
	Balance(ctx context.Context, userID string) (*balance.Balance, error)
	Credit(ctx context.Context, userID string, amount int64, reason, requester string) (*balance.Credit, error)
}

// BalanceHandler 残高関連ハンドラー
type BalanceHandler struct {
	ledger BalanceLedger
}

// NewBalanceHandler 新しいBalanceHandlerを作成
func NewBalanceHandler(ledger BalanceLedger) *BalanceHandler {
	return &BalanceHandler{
		ledger: ledger,
	}
}

// GetBalance 残高取得ハンドラー（ユーザーAPI用）
// @Summary 残高を取得
// @Description 自分の残高、確保中の額、利用可能額を取得します
// @Tags balance
// @Produce json
// @Security Bearer
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /users/me/balance [get]
func (h *BalanceHandler) GetBalance(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}
	return h.getBalanceInternal(c, userID)
}

// GetBalanceAdmin 残高取得ハンドラー（管理API用）
// @Summary 残高を取得（管理API）
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID" example(user_1)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/balance [get]
func (h *BalanceHandler) GetBalanceAdmin(c echo.Context) error {
	userID := c.Param("user_id")
	if err := balance.ValidateUserID(userID); err != nil {
		return err
	}
	return h.getBalanceInternal(c, userID)
}

func (h *BalanceHandler) getBalanceInternal(c echo.Context, userID string) error {
	b, err := h.ledger.Balance(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		Success:   true,
		UserID:    b.UserID(),
		Balance:   b.Amount(),
		Held:      b.Held(),
		Available: b.Available(),
	})
}

// CreditAdmin 残高加算ハンドラー（管理API用）
// @Summary 残高を加算（管理API）
// @Description 指定されたユーザーの残高を加算し、監査レコードを残します
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "ユーザーID" example(user_1)
// @Param X-API-Key header string true "APIキー"
// @Param request body CreditRequest true "加算リクエスト"
// @Success 200 {object} CreditResponse "加算成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 403 {object} ErrorResponse "許可されていないIP"
// @Router /admin/users/{user_id}/credit [post]
func (h *BalanceHandler) CreditAdmin(c echo.Context) error {
	userID := c.Param("user_id")
	if err := balance.ValidateUserID(userID); err != nil {
		return err
	}

	var req CreditRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", settlement.ErrValidation)
	}
	if req.Amount == nil {
		return fmt.Errorf("%w: amount must be a positive integer", settlement.ErrInvalidAmount)
	}
	amount, ok := balance.WholeAmount(*req.Amount)
	if !ok {
		return fmt.Errorf("%w: amount must be a positive integer", settlement.ErrInvalidAmount)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" || len(reason) > maxCreditReasonLength {
		return fmt.Errorf("%w: reason is required and must be at most %d characters", settlement.ErrValidation, maxCreditReasonLength)
	}

	requester, _ := c.Get(restmiddleware.RequesterKey).(string)
	if requester == "" {
		requester = "admin"
	}

	credit, err := h.ledger.Credit(c.Request().Context(), userID, amount, reason, requester)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, CreditResponse{
		Success:       true,
		CreditID:      credit.CreditID(),
		UserID:        credit.UserID(),
		Amount:        credit.Amount(),
		BalanceBefore: credit.BalanceBefore(),
		Balance:       credit.BalanceAfter(),
	})
}
