package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	historyapp "recharge-server/internal/application/history"
	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	restmiddleware "recharge-server/internal/presentation/rest/middleware"
)

// HistoryHandler 履歴関連ハンドラー
type HistoryHandler struct {
	historyService *historyapp.HistoryApplicationService
}

// NewHistoryHandler 新しいHistoryHandlerを作成
func NewHistoryHandler(historyService *historyapp.HistoryApplicationService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// GetTransactionHistory 精算履歴取得ハンドラー（ユーザーAPI用）
// @Summary 精算履歴を取得
// @Description 自分の精算記録を新しい順に取得します
// @Tags history
// @Produce json
// @Security Bearer
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット" default(0)
// @Param status query string false "ステータスでフィルタ（completed/failed）"
// @Success 200 {object} TransactionHistoryResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /users/me/transactions [get]
func (h *HistoryHandler) GetTransactionHistory(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}
	return h.getTransactionHistoryInternal(c, userID)
}

// GetTransactionHistoryAdmin 精算履歴取得ハンドラー（管理API用）
// @Summary 精算履歴を取得（管理API）
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID"
// @Param X-API-Key header string true "APIキー"
// @Param limit query int false "取得件数" default(50)
// @Param offset query int false "オフセット" default(0)
// @Param status query string false "ステータスでフィルタ（completed/failed）"
// @Success 200 {object} TransactionHistoryResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/transactions [get]
func (h *HistoryHandler) GetTransactionHistoryAdmin(c echo.Context) error {
	userID := c.Param("user_id")
	if err := balance.ValidateUserID(userID); err != nil {
		return err
	}
	return h.getTransactionHistoryInternal(c, userID)
}

func (h *HistoryHandler) getTransactionHistoryInternal(c echo.Context, userID string) error {
	limit, err := queryInt(c, "limit", 50, 1, 100)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0, 0, -1)
	if err != nil {
		return err
	}

	resp, err := h.historyService.GetTransactionHistory(c.Request().Context(), &historyapp.GetTransactionHistoryRequest{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
		Status: c.QueryParam("status"),
	})
	if err != nil {
		return err
	}

	items := make([]TransactionItem, len(resp.Transactions))
	for i, txn := range resp.Transactions {
		items[i] = TransactionItem{
			TransactionID:    txn.TransactionID(),
			AttemptID:        txn.AttemptID(),
			Operator:         txn.Operator(),
			TargetIdentifier: txn.TargetIdentifier(),
			PackageID:        txn.PackageID(),
			Amount:           txn.Amount(),
			Status:           txn.Status().String(),
			ProviderTxID:     txn.ProviderTxID(),
			BalanceBefore:    txn.BalanceBefore(),
			BalanceAfter:     txn.BalanceAfter(),
			ErrorReason:      txn.ErrorReason(),
			CreatedAt:        txn.CreatedAt().UTC().Format(time.RFC3339),
		}
	}

	return c.JSON(http.StatusOK, TransactionHistoryResponse{
		Success:      true,
		Transactions: items,
		Limit:        resp.Limit,
		Offset:       resp.Offset,
	})
}

// queryInt 整数のクエリパラメータを取得（hi が負なら上限なし）
func queryInt(c echo.Context, name string, def, lo, hi int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi >= 0 && v > hi) {
		return 0, fmt.Errorf("%w: invalid %s parameter", settlement.ErrValidation, name)
	}
	return v, nil
}
