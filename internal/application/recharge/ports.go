package recharge

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/domain/reservation"
	"recharge-server/internal/domain/service"
	"recharge-server/internal/domain/transaction"
)

// PriceResolver 請求額の確定
type PriceResolver interface {
	Resolve(ctx context.Context, operator *catalog.Operator, packageID string, amount *decimal.Decimal) (*service.Resolution, error)
}

// Ledger 二段階の残高操作
type Ledger interface {
	Reserve(ctx context.Context, userID, attemptID string, amount int64) (*reservation.Hold, error)
	Commit(ctx context.Context, hold *reservation.Hold) (before, after int64, err error)
	Release(ctx context.Context, hold *reservation.Hold) error
	StaleHolds(ctx context.Context, before time.Time, limit int) ([]*reservation.Hold, error)
}

// AttemptGuard 処理中の試行IDの排他
type AttemptGuard interface {
	Acquire(ctx context.Context, attemptID string) (func(context.Context) error, error)
}

// AuditAlertPublisher 記録失敗の通知先
type AuditAlertPublisher interface {
	PublishAuditFailure(ctx context.Context, t *transaction.Transaction, cause error) error
}
