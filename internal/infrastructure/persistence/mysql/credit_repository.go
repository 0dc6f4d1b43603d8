package mysql

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/balance"
)

// CreditRepository MySQL実装のCreditRepository
type CreditRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewCreditRepository 新しいCreditRepositoryを作成
func NewCreditRepository(db *DB) *CreditRepository {
	return &CreditRepository{
		db:     db,
		tracer: otel.Tracer("credit-repository"),
	}
}

// Save 残高加算の監査レコードを保存
func (r *CreditRepository) Save(ctx context.Context, c *balance.Credit) error {
	ctx, span := r.tracer.Start(ctx, "CreditRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.credit_id", c.CreditID()),
		attribute.String("db.user_id", c.UserID()),
		attribute.Int64("db.amount", c.Amount()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "balance_credits"),
	)

	query := `
		INSERT INTO balance_credits (
			credit_id, user_id, amount, balance_before, balance_after,
			reason, requester, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		c.CreditID(),
		c.UserID(),
		c.Amount(),
		c.BalanceBefore(),
		c.BalanceAfter(),
		c.Reason(),
		c.Requester(),
		c.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save credit: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "credit saved")
	return nil
}
