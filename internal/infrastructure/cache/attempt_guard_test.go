package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recharge-server/internal/domain/reservation"
)

// fakeLockClient SetNX/Evalの結果を記録するフェイク
type fakeLockClient struct {
	values  map[string]interface{}
	setErr  error
	evalErr error
	ttls    []time.Duration
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{values: map[string]interface{}{}}
}

func (f *fakeLockClient) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	f.ttls = append(f.ttls, expiration)
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if f.values[keys[0]] == args[0] {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestAttemptGuard_Acquire(t *testing.T) {
	client := newFakeLockClient()
	guard := NewAttemptGuard(client, 2*time.Minute)
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "att-1")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Minute}, client.ttls)

	_, err = guard.Acquire(ctx, "att-1")
	assert.ErrorIs(t, err, reservation.ErrDuplicateAttempt)

	require.NoError(t, release(ctx))
	assert.Empty(t, client.values)

	release, err = guard.Acquire(ctx, "att-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestAttemptGuard_Acquire_RedisError(t *testing.T) {
	client := newFakeLockClient()
	client.setErr = errors.New("connection refused")
	guard := NewAttemptGuard(client, time.Minute)

	release, err := guard.Acquire(context.Background(), "att-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, reservation.ErrDuplicateAttempt)
	assert.Nil(t, release)
}

func TestAttemptGuard_ReleaseError(t *testing.T) {
	client := newFakeLockClient()
	guard := NewAttemptGuard(client, time.Minute)

	release, err := guard.Acquire(context.Background(), "att-1")
	require.NoError(t, err)

	client.evalErr = errors.New("connection reset")
	assert.Error(t, release(context.Background()))
}

func TestLocalAttemptGuard_Acquire(t *testing.T) {
	guard := NewLocalAttemptGuard()
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "att-1")
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "att-1")
	assert.ErrorIs(t, err, reservation.ErrDuplicateAttempt)

	other, err := guard.Acquire(ctx, "att-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	_, err = guard.Acquire(ctx, "att-1")
	assert.NoError(t, err)
}

func TestAttemptKey(t *testing.T) {
	assert.Equal(t, "recharge:attempt:v1:att-1", AttemptKey("att-1"))
}
