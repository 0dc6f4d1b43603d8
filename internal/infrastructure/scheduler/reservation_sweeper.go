package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// ReservationExpirer 期限切れ確保の回収処理
type ReservationExpirer interface {
	ExpireReservations(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// ReservationSweeper 期限切れ確保を定期的に回収するスケジューラー
type ReservationSweeper struct {
	cron    *cron.Cron
	expirer ReservationExpirer
	maxAge  time.Duration
	limit   int
	timeout time.Duration
	logger  *otelinfra.Logger
}

// NewReservationSweeper 新しいReservationSweeperを作成
//
// spec はcron式（"@every 1m" など）。前回の実行が終わっていない場合はスキップする。
func NewReservationSweeper(spec string, expirer ReservationExpirer, maxAge time.Duration, limit int, logger *otelinfra.Logger) (*ReservationSweeper, error) {
	s := &ReservationSweeper{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer: expirer,
		maxAge:  maxAge,
		limit:   limit,
		timeout: time.Minute,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start スケジューラーを開始
func (s *ReservationSweeper) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "Reservation sweeper started", map[string]interface{}{
		"max_age": s.maxAge.String(),
		"limit":   s.limit,
	})
}

// Stop スケジューラーを停止し、実行中の回収を待つ
func (s *ReservationSweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep 1回分の回収を実行
func (s *ReservationSweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.expirer.ExpireReservations(ctx, s.maxAge, s.limit)
	if err != nil {
		s.logger.Error(ctx, "Reservation sweep failed", err, nil)
		return 0
	}
	if n > 0 {
		s.logger.Info(ctx, "Reservation sweep completed", map[string]interface{}{
			"expired": n,
		})
	}
	return n
}
