package interceptor

import (
	"context"
	"strings"
)

type userIDKey struct{}

type requesterKey struct{}

// WithUserID 認証済みユーザーIDをコンテキストに設定
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext 認証済みユーザーIDを取得（未認証の場合は空）
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// RequesterFromContext 管理APIの呼び出し元を取得
func RequesterFromContext(ctx context.Context) string {
	requester, _ := ctx.Value(requesterKey{}).(string)
	return requester
}

// ForService 指定サービスのメソッドだけに一致するマッチャー
func ForService(serviceName string) func(fullMethod string) bool {
	prefix := "/" + serviceName + "/"
	return func(fullMethod string) bool {
		return strings.HasPrefix(fullMethod, prefix)
	}
}
