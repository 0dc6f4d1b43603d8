package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	authapp "recharge-server/internal/application/auth"
	restmiddleware "recharge-server/internal/presentation/rest/middleware"
)

// TokenIssuer アクセストークンの発行
type TokenIssuer interface {
	IssueToken(ctx context.Context, req *authapp.IssueTokenRequest) (*authapp.IssueTokenResponse, error)
}

// IssueTokenResponse トークン発行レスポンス
// @Description トークン発行レスポンス
type IssueTokenResponse struct {
	Success   bool   `json:"success" example:"true"`
	UserID    string `json:"userId" example:"user_1"`
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.e30.signature"`
	ExpiresIn int64  `json:"expiresIn" example:"86400"`
	TokenType string `json:"tokenType" example:"Bearer"`
}

// AuthHandler 認証関連ハンドラー
type AuthHandler struct {
	issuer TokenIssuer
}

// NewAuthHandler 新しいAuthHandlerを作成
func NewAuthHandler(issuer TokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// IssueTokenAdmin トークン発行ハンドラー（管理API用）
// @Summary ユーザーのアクセストークンを発行
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID"
// @Success 200 {object} IssueTokenResponse
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /admin/users/{user_id}/token [post]
func (h *AuthHandler) IssueTokenAdmin(c echo.Context) error {
	requester, _ := c.Get(restmiddleware.RequesterKey).(string)
	if requester == "" {
		requester = "admin"
	}

	resp, err := h.issuer.IssueToken(c.Request().Context(), &authapp.IssueTokenRequest{
		UserID:    c.Param("user_id"),
		Requester: requester,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, IssueTokenResponse{
		Success:   true,
		UserID:    c.Param("user_id"),
		Token:     resp.Token,
		ExpiresIn: resp.ExpiresIn,
		TokenType: resp.TokenType,
	})
}
