package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/reservation"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// lockClient AttemptGuardが使うRedisコマンド
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// AttemptKey 試行IDの処理中ロックのキー
func AttemptKey(attemptID string) string {
	return fmt.Sprintf("recharge:attempt:v1:%s", attemptID)
}

// AttemptGuard Redisによる試行IDの処理中ガード
//
// 同じ試行IDの並行実行を防ぐ。ロックはTTLで自然に失効する。
type AttemptGuard struct {
	client lockClient
	ttl    time.Duration
	tracer trace.Tracer
}

// NewAttemptGuard 新しいAttemptGuardを作成
func NewAttemptGuard(client lockClient, ttl time.Duration) *AttemptGuard {
	return &AttemptGuard{
		client: client,
		ttl:    ttl,
		tracer: otel.Tracer("attempt-guard"),
	}
}

// Acquire 試行IDのロックを取得し、解放関数を返す
//
// 既に処理中の場合は reservation.ErrDuplicateAttempt を返す。
func (g *AttemptGuard) Acquire(ctx context.Context, attemptID string) (func(context.Context) error, error) {
	ctx, span := g.tracer.Start(ctx, "AttemptGuard.Acquire")
	defer span.End()

	key := AttemptKey(attemptID)
	token := uuid.NewString()
	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.String("cache.operation", "SETNX"),
	)

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to acquire attempt lock: %w", err)
	}
	if !ok {
		span.SetStatus(otelcodes.Error, "attempt in flight")
		return nil, fmt.Errorf("attempt %s in flight: %w", attemptID, reservation.ErrDuplicateAttempt)
	}

	span.SetStatus(otelcodes.Ok, "attempt lock acquired")
	return func(ctx context.Context) error {
		if err := g.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release attempt lock: %w", err)
		}
		return nil
	}, nil
}

// LocalAttemptGuard プロセス内の試行IDガード（Redis無効時に使用）
type LocalAttemptGuard struct {
	inFlight sync.Map
}

// NewLocalAttemptGuard 新しいLocalAttemptGuardを作成
func NewLocalAttemptGuard() *LocalAttemptGuard {
	return &LocalAttemptGuard{}
}

// Acquire 試行IDのロックを取得し、解放関数を返す
func (g *LocalAttemptGuard) Acquire(_ context.Context, attemptID string) (func(context.Context) error, error) {
	if _, loaded := g.inFlight.LoadOrStore(attemptID, struct{}{}); loaded {
		return nil, fmt.Errorf("attempt %s in flight: %w", attemptID, reservation.ErrDuplicateAttempt)
	}
	return func(context.Context) error {
		g.inFlight.Delete(attemptID)
		return nil
	}, nil
}
