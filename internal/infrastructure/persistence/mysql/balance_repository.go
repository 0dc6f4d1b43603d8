package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/balance"
)

// BalanceRepository MySQL実装のBalanceRepository
type BalanceRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewBalanceRepository 新しいBalanceRepositoryを作成
func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{
		db:     db,
		tracer: otel.Tracer("balance-repository"),
	}
}

// Ensure 残高レコードがなければ残高0で作成
func (r *BalanceRepository) Ensure(ctx context.Context, userID string) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.Ensure")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "balances"),
	)

	query := `INSERT IGNORE INTO balances (user_id, amount, held, version) VALUES (?, 0, 0, 0)`
	if _, err := r.db.conn(ctx).ExecContext(ctx, query, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to ensure balance: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "balance ensured")
	return nil
}

// FindForUpdate 行ロックを取得して残高を取得
func (r *BalanceRepository) FindForUpdate(ctx context.Context, userID string) (*balance.Balance, error) {
	return r.find(ctx, "BalanceRepository.FindForUpdate", userID, true)
}

// FindByUserID ユーザーIDで残高を取得
func (r *BalanceRepository) FindByUserID(ctx context.Context, userID string) (*balance.Balance, error) {
	return r.find(ctx, "BalanceRepository.FindByUserID", userID, false)
}

func (r *BalanceRepository) find(ctx context.Context, spanName, userID string, lock bool) (*balance.Balance, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "balances"),
		attribute.Bool("db.for_update", lock),
	)

	query := `SELECT user_id, amount, held, version FROM balances WHERE user_id = ?`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		id      string
		amount  int64
		held    int64
		version int
	)
	err := r.db.conn(ctx).QueryRowContext(ctx, query, userID).Scan(&id, &amount, &held, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetStatus(otelcodes.Ok, "balance not found")
			return nil, balance.ErrBalanceNotFound
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find balance: %w", err)
	}

	b, err := balance.NewBalance(id, amount, held, version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to restore balance: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "balance found")
	return b, nil
}

// Save 残高を保存
//
// 保存済みより新しいバージョンのみ書き込む。
func (r *BalanceRepository) Save(ctx context.Context, b *balance.Balance) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", b.UserID()),
		attribute.Int64("db.amount", b.Amount()),
		attribute.Int64("db.held", b.Held()),
		attribute.Int("db.version", b.Version()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "balances"),
	)

	query := `
		UPDATE balances
		SET amount = ?, held = ?, version = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND version < ?
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		b.Amount(),
		b.Held(),
		b.Version(),
		b.UserID(),
		b.Version(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err := fmt.Errorf("balance %s was not updated: %w", b.UserID(), balance.ErrBalanceNotFound)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	span.SetStatus(otelcodes.Ok, "balance saved")
	return nil
}
