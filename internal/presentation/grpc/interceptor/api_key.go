package interceptor

import (
	"context"
	"crypto/subtle"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
	"recharge-server/internal/presentation/allowlist"
)

// APIKeyInterceptor 管理APIのAPIキー認証インターセプター
//
// match が false を返すメソッドは検証せずに通す。
func APIKeyInterceptor(cfg *config.AdminAPIConfig, logger *otelinfra.Logger, match func(fullMethod string) bool) grpc.UnaryServerInterceptor {
	allowed := allowlist.Parse(cfg.AllowedIPs)

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !match(info.FullMethod) {
			return handler(ctx, req)
		}

		if !cfg.Enabled {
			logger.Warn(ctx, "Admin API is disabled", nil)
			return nil, status.Error(codes.PermissionDenied, "admin API is disabled")
		}

		md, _ := metadata.FromIncomingContext(ctx)
		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			logger.Warn(ctx, "Missing X-API-Key metadata", nil)
			return nil, status.Error(codes.Unauthenticated, "missing X-API-Key metadata")
		}
		if subtle.ConstantTimeCompare([]byte(apiKeys[0]), []byte(cfg.APIKey)) != 1 {
			logger.Warn(ctx, "Invalid API key", nil)
			return nil, status.Error(codes.Unauthenticated, "invalid API key")
		}

		clientIP := peerIP(ctx)
		if !allowed.Allows(clientIP) {
			logger.Warn(ctx, "IP address not allowed", map[string]interface{}{
				"ip": clientIP,
			})
			return nil, status.Error(codes.PermissionDenied, "IP address not allowed")
		}

		ctx = context.WithValue(ctx, requesterKey{}, "admin@"+clientIP)
		return handler(ctx, req)
	}
}

// peerIP 接続元のIPアドレスを取得
func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
