package interceptor

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// AuthInterceptor JWT認証インターセプター
//
// match が false を返すメソッドは検証せずに通す。
func AuthInterceptor(cfg *config.JWTConfig, logger *otelinfra.Logger, match func(fullMethod string) bool) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !match(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			logger.Warn(ctx, "Missing metadata", map[string]interface{}{"method": info.FullMethod})
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			logger.Warn(ctx, "Missing authorization header", map[string]interface{}{"method": info.FullMethod})
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		tokenString, ok := strings.CutPrefix(authHeaders[0], "Bearer ")
		if !ok || tokenString == "" {
			logger.Warn(ctx, "Invalid authorization header format", nil)
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
		)
		if err != nil || !token.Valid {
			fields := map[string]interface{}{}
			if err != nil {
				fields["error"] = err.Error()
			}
			logger.Warn(ctx, "Invalid token", fields)
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			logger.Warn(ctx, "Missing user_id in token claims", nil)
			return nil, status.Error(codes.Unauthenticated, "missing user_id in token")
		}

		return handler(WithUserID(ctx, userID), req)
	}
}
