package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

type fakeExpirer struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
	limit  int
	n      int
	err    error
}

func (f *fakeExpirer) ExpireReservations(_ context.Context, maxAge time.Duration, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.maxAge = maxAge
	f.limit = limit
	return f.n, f.err
}

func (f *fakeExpirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newObservedLogger() (*otelinfra.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return otelinfra.NewLoggerWithZap(noop.NewTracerProvider().Tracer("test"), zap.New(core)), logs
}

func TestNewReservationSweeper(t *testing.T) {
	logger, _ := newObservedLogger()

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "正常系: every記法", spec: "@every 1m"},
		{name: "正常系: 5フィールドのcron式", spec: "*/5 * * * *"},
		{name: "異常系: 不正な式", spec: "every minute", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewReservationSweeper(tt.spec, &fakeExpirer{}, 5*time.Minute, 100, logger)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestReservationSweeper_Sweep(t *testing.T) {
	t.Run("正常系: 設定値で回収を呼び出す", func(t *testing.T) {
		logger, logs := newObservedLogger()
		expirer := &fakeExpirer{n: 3}
		s, err := NewReservationSweeper("@every 1h", expirer, 5*time.Minute, 50, logger)
		require.NoError(t, err)

		assert.Equal(t, 3, s.Sweep(context.Background()))
		assert.Equal(t, 5*time.Minute, expirer.maxAge)
		assert.Equal(t, 50, expirer.limit)
		assert.Equal(t, 1, logs.FilterMessage("Reservation sweep completed").Len())
	})

	t.Run("異常系: 回収の失敗はログに残す", func(t *testing.T) {
		logger, logs := newObservedLogger()
		expirer := &fakeExpirer{err: errors.New("database is down")}
		s, err := NewReservationSweeper("@every 1h", expirer, 5*time.Minute, 50, logger)
		require.NoError(t, err)

		assert.Equal(t, 0, s.Sweep(context.Background()))
		assert.Equal(t, 1, logs.FilterMessage("Reservation sweep failed").Len())
	})
}

func TestReservationSweeper_StartStop(t *testing.T) {
	logger, _ := newObservedLogger()
	expirer := &fakeExpirer{}
	s, err := NewReservationSweeper("@every 1s", expirer, time.Minute, 10, logger)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return expirer.callCount() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
