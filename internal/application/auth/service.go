package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// TokenIssuer 精算APIのアクセストークン発行サービス
//
// 発行するトークンは REST と gRPC の認証で検証するものと同じ形式（HS256、user_id クレーム）。
type TokenIssuer struct {
	jwtConfig *config.JWTConfig
	logger    *otelinfra.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewTokenIssuer 新しいTokenIssuerを作成
func NewTokenIssuer(jwtConfig *config.JWTConfig, logger *otelinfra.Logger) *TokenIssuer {
	return &TokenIssuer{
		jwtConfig: jwtConfig,
		logger:    logger,
		tracer:    otel.Tracer("auth-service"),
		now:       time.Now,
	}
}

// IssueToken ユーザーのアクセストークンを発行
func (s *TokenIssuer) IssueToken(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TokenIssuer.IssueToken")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("requester", req.Requester),
	)

	if err := balance.ValidateUserID(req.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", settlement.ErrValidation, err)
	}

	now := s.now()
	expiresAt := now.Add(s.jwtConfig.Expiration)
	claims := jwt.MapClaims{
		"user_id": req.UserID,
		"iss":     s.jwtConfig.Issuer,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "Failed to sign token", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info(ctx, "Access token issued", map[string]interface{}{
		"user_id":    req.UserID,
		"requester":  req.Requester,
		"expires_at": expiresAt.Unix(),
	})
	span.SetStatus(codes.Ok, "issued")

	return &IssueTokenResponse{
		Token:     tokenString,
		ExpiresIn: int64(s.jwtConfig.Expiration.Seconds()),
		TokenType: "Bearer",
	}, nil
}
