package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/reservation"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/domain/transaction"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// Ledger ユーザー残高台帳
//
// 残高の変更はすべて WithinAtomicScope を通り、ユーザー単位の行ロックで直列化される。
// 確保レコードの状態遷移も同じスコープ内で行う。
type Ledger struct {
	balanceRepo balance.BalanceRepository
	holdRepo    reservation.HoldRepository
	creditRepo  balance.CreditRepository
	txManager   transaction.TransactionManager
	logger      *otelinfra.Logger
	metrics     *otelinfra.Metrics
	tracer      trace.Tracer
}

// NewLedger 新しいLedgerを作成
func NewLedger(
	balanceRepo balance.BalanceRepository,
	holdRepo reservation.HoldRepository,
	creditRepo balance.CreditRepository,
	txManager transaction.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *Ledger {
	return &Ledger{
		balanceRepo: balanceRepo,
		holdRepo:    holdRepo,
		creditRepo:  creditRepo,
		txManager:   txManager,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("ledger-service"),
	}
}

// WithinAtomicScope ユーザー残高をロックして fn を実行
//
// レコードがなければ残高0で作成する。fn がエラーを返した場合は何も変更しない。
// fn に渡す ctx はスコープのトランザクションを持つ。
func (l *Ledger) WithinAtomicScope(ctx context.Context, userID string, fn func(ctx context.Context, b *balance.Balance) error) (*balance.Balance, error) {
	var result *balance.Balance
	err := l.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := l.balanceRepo.Ensure(ctx, userID); err != nil {
			return persistence(err)
		}
		b, err := l.balanceRepo.FindForUpdate(ctx, userID)
		if err != nil {
			return persistence(err)
		}

		version := b.Version()
		if err := fn(ctx, b); err != nil {
			return err
		}
		if b.Version() != version {
			if err := l.balanceRepo.Save(ctx, b); err != nil {
				return persistence(err)
			}
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Debit 単一フェーズで引き落とす
//
// 決済フローは Reserve と Commit の2段階で引き落とし、このメソッドは使わない。
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64) (before, after int64, err error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Debit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", amount),
	)

	b, err := l.WithinAtomicScope(ctx, userID, func(_ context.Context, b *balance.Balance) error {
		before = b.Amount()
		return b.Debit(amount)
	})
	if err != nil {
		l.fail(ctx, span, "Debit failed", err, userID)
		return 0, 0, err
	}

	l.metrics.RecordBalance(ctx, userID, b.Amount())
	span.SetStatus(otelcodes.Ok, "debited")
	return before, b.Amount(), nil
}

// Reserve 利用可能残高から確保し、確保レコードを作成
func (l *Ledger) Reserve(ctx context.Context, userID, attemptID string, amount int64) (*reservation.Hold, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("attempt_id", attemptID),
		attribute.Int64("amount", amount),
	)

	var hold *reservation.Hold
	_, err := l.WithinAtomicScope(ctx, userID, func(ctx context.Context, b *balance.Balance) error {
		if err := b.Hold(amount); err != nil {
			return err
		}
		hold = reservation.NewHold(attemptID, userID, amount)
		if err := l.holdRepo.Create(ctx, hold); err != nil {
			if errors.Is(err, reservation.ErrDuplicateAttempt) {
				return err
			}
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		l.fail(ctx, span, "Reserve failed", err, userID)
		return nil, err
	}

	l.logger.Debug(ctx, "Funds reserved", map[string]interface{}{
		"user_id":    userID,
		"attempt_id": attemptID,
		"amount":     amount,
	})
	span.SetStatus(otelcodes.Ok, "reserved")
	return hold, nil
}

// Commit 確保額を引き落として確定
//
// 確保が期限切れで解放済みの場合は settlement.ErrReservationExpired を返す。
func (l *Ledger) Commit(ctx context.Context, hold *reservation.Hold) (before, after int64, err error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Commit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", hold.UserID()),
		attribute.String("attempt_id", hold.AttemptID()),
		attribute.Int64("amount", hold.Amount()),
	)

	b, err := l.WithinAtomicScope(ctx, hold.UserID(), func(ctx context.Context, b *balance.Balance) error {
		current, err := l.holdRepo.FindByAttemptID(ctx, hold.AttemptID())
		if err != nil {
			return persistence(err)
		}
		switch current.Status() {
		case reservation.HoldStatusReleased:
			return fmt.Errorf("hold %s: %w", hold.AttemptID(), settlement.ErrReservationExpired)
		case reservation.HoldStatusCommitted:
			return fmt.Errorf("hold %s: %w", hold.AttemptID(), reservation.ErrHoldAlreadyFinalized)
		}

		before = b.Amount()
		if err := b.CommitHold(current.Amount()); err != nil {
			return err
		}
		if err := current.Commit(); err != nil {
			return err
		}
		if err := l.holdRepo.UpdateStatus(ctx, current); err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		l.fail(ctx, span, "Commit failed", err, hold.UserID())
		return 0, 0, err
	}

	l.metrics.RecordBalance(ctx, hold.UserID(), b.Amount())
	span.SetStatus(otelcodes.Ok, "committed")
	return before, b.Amount(), nil
}

// Release 確保を解放（解放済みなら何もしない）
func (l *Ledger) Release(ctx context.Context, hold *reservation.Hold) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.Release")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", hold.UserID()),
		attribute.String("attempt_id", hold.AttemptID()),
		attribute.Int64("amount", hold.Amount()),
	)

	_, err := l.WithinAtomicScope(ctx, hold.UserID(), func(ctx context.Context, b *balance.Balance) error {
		current, err := l.holdRepo.FindByAttemptID(ctx, hold.AttemptID())
		if err != nil {
			return persistence(err)
		}
		switch current.Status() {
		case reservation.HoldStatusReleased:
			return nil
		case reservation.HoldStatusCommitted:
			return fmt.Errorf("hold %s: %w", hold.AttemptID(), reservation.ErrHoldAlreadyFinalized)
		}

		if err := b.ReleaseHold(current.Amount()); err != nil {
			return err
		}
		if err := current.Release(); err != nil {
			return err
		}
		if err := l.holdRepo.UpdateStatus(ctx, current); err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		l.fail(ctx, span, "Release failed", err, hold.UserID())
		return err
	}

	span.SetStatus(otelcodes.Ok, "released")
	return nil
}

// Credit 残高を加算し、監査レコードを同じスコープで保存
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, reason, requester string) (*balance.Credit, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Credit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", amount),
		attribute.String("requester", requester),
	)

	var credit *balance.Credit
	b, err := l.WithinAtomicScope(ctx, userID, func(ctx context.Context, b *balance.Balance) error {
		before := b.Amount()
		if err := b.Credit(amount); err != nil {
			return err
		}
		credit = balance.NewCredit(ulid.Make().String(), userID, amount, before, b.Amount(), reason, requester)
		if err := l.creditRepo.Save(ctx, credit); err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		l.fail(ctx, span, "Credit failed", err, userID)
		return nil, err
	}

	l.logger.Info(ctx, "Balance credited", map[string]interface{}{
		"user_id":   userID,
		"amount":    amount,
		"balance":   b.Amount(),
		"requester": requester,
		"credit_id": credit.CreditID(),
	})
	l.metrics.RecordBalance(ctx, userID, b.Amount())
	span.SetStatus(otelcodes.Ok, "credited")
	return credit, nil
}

// Balance ロックなしで残高を取得（レコードがなければ0）
func (l *Ledger) Balance(ctx context.Context, userID string) (*balance.Balance, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Balance")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	b, err := l.balanceRepo.FindByUserID(ctx, userID)
	if errors.Is(err, balance.ErrBalanceNotFound) {
		span.SetStatus(otelcodes.Ok, "balance not materialized")
		return balance.Empty(userID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, persistence(err)
	}

	span.SetStatus(otelcodes.Ok, "balance found")
	return b, nil
}

// StaleHolds before より前に作成された確保中レコードを取得
func (l *Ledger) StaleHolds(ctx context.Context, before time.Time, limit int) ([]*reservation.Hold, error) {
	holds, err := l.holdRepo.FindStalePending(ctx, before, limit)
	if err != nil {
		return nil, persistence(err)
	}
	return holds, nil
}

func (l *Ledger) fail(ctx context.Context, span trace.Span, msg string, err error, userID string) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	if errors.Is(err, settlement.ErrPersistence) {
		l.logger.Error(ctx, msg, err, map[string]interface{}{"user_id": userID})
		l.metrics.RecordError(ctx, "ledger_persistence")
		return
	}
	l.logger.Warn(ctx, msg, map[string]interface{}{
		"user_id": userID,
		"error":   err.Error(),
	})
}

// persistence 永続化エラーとして分類できるようラップする
func persistence(err error) error {
	if errors.Is(err, settlement.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", settlement.ErrPersistence, err)
}
