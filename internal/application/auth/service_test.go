package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

func TestTokenIssuer_IssueToken(t *testing.T) {
	jwtConfig := &config.JWTConfig{
		Secret:     "test-secret-key",
		Issuer:     "recharge-server",
		Expiration: 24 * time.Hour,
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		req       *IssueTokenRequest
		wantError error
	}{
		{
			name: "正常系: トークンを発行",
			req:  &IssueTokenRequest{UserID: "user_1", Requester: "admin@127.0.0.1"},
		},
		{
			name:      "異常系: ユーザーIDが空",
			req:       &IssueTokenRequest{UserID: ""},
			wantError: settlement.ErrValidation,
		},
		{
			name:      "異常系: ユーザーIDに使えない文字",
			req:       &IssueTokenRequest{UserID: "user 1"},
			wantError: settlement.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTokenIssuer(jwtConfig, otelinfra.NewLogger(otel.Tracer("test")))
			svc.now = func() time.Time { return fixed }

			got, err := svc.IssueToken(context.Background(), tt.req)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(86400), got.ExpiresIn)
			assert.Equal(t, "Bearer", got.TokenType)

			claims := jwt.MapClaims{}
			_, err = jwt.ParseWithClaims(got.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte("test-secret-key"), nil
			}, jwt.WithTimeFunc(func() time.Time { return fixed }), jwt.WithIssuer("recharge-server"))
			require.NoError(t, err)
			assert.Equal(t, "user_1", claims["user_id"])
			assert.Equal(t, float64(fixed.Add(24*time.Hour).Unix()), claims["exp"])
		})
	}
}
