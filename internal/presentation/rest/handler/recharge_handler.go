package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	rechargeapp "recharge-server/internal/application/recharge"
	"recharge-server/internal/domain/settlement"
	restmiddleware "recharge-server/internal/presentation/rest/middleware"
)

// Settler チャージ精算を実行する
type Settler interface {
	Settle(ctx context.Context, req *rechargeapp.SettleRequest) (*rechargeapp.SettleResponse, error)
}

// RechargeHandler チャージ関連ハンドラー
type RechargeHandler struct {
	settler Settler
}

// NewRechargeHandler 新しいRechargeHandlerを作成
func NewRechargeHandler(settler Settler) *RechargeHandler {
	return &RechargeHandler{
		settler: settler,
	}
}

// Recharge チャージハンドラー
// @Summary 通信・ゲームのチャージを実行
// @Description 残高を確保してプロバイダーにチャージを依頼し、成功時のみ引き落とします。同じ attemptId（または Idempotency-Key）の再送は記録済みの結果を返します
// @Tags recharge
// @Accept json
// @Produce json
// @Security Bearer
// @Param Idempotency-Key header string false "試行ID"
// @Param request body RechargeRequest true "チャージリクエスト"
// @Success 200 {object} RechargeResponse "チャージ成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 402 {object} ErrorResponse "残高不足"
// @Failure 404 {object} ErrorResponse "パッケージが見つからない"
// @Failure 409 {object} ErrorResponse "同じ試行が処理中"
// @Failure 500 {object} ErrorResponse "プロバイダー拒否または内部エラー"
// @Failure 504 {object} ErrorResponse "プロバイダー到達不能またはタイムアウト"
// @Router /recharge [post]
func (h *RechargeHandler) Recharge(c echo.Context) error {
	tokenUserID := restmiddleware.UserID(c)
	if tokenUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var req RechargeRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", settlement.ErrValidation)
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = tokenUserID
	}
	if userID != tokenUserID {
		return echo.NewHTTPError(http.StatusForbidden, "userId does not match token")
	}

	attemptID := strings.TrimSpace(req.AttemptID)
	if key := strings.TrimSpace(c.Request().Header.Get(restmiddleware.IdempotencyKeyHeader)); key != "" {
		if attemptID != "" && attemptID != key {
			return fmt.Errorf("%w: attemptId does not match Idempotency-Key", settlement.ErrValidation)
		}
		attemptID = key
	}

	resp, err := h.settler.Settle(c.Request().Context(), &rechargeapp.SettleRequest{
		AttemptID:   attemptID,
		UserID:      userID,
		Operator:    req.Operator,
		PhoneNumber: req.PhoneNumber,
		PlayerID:    req.PlayerID,
		PackageID:   req.PackageID,
		Amount:      req.Amount,
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(restmiddleware.IdempotencyKeyHeader, resp.AttemptID)
	return c.JSON(http.StatusOK, RechargeResponse{
		Success:       true,
		Message:       resp.Message,
		TransactionID: resp.TransactionID,
		AttemptID:     resp.AttemptID,
		Amount:        resp.Amount,
		NewBalance:    resp.NewBalance,
		ProviderTxID:  resp.ProviderTxID,
		Replayed:      resp.Replayed,
	})
}
