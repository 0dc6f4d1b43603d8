package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/transaction"
)

const transactionColumns = `
	transaction_id, attempt_id, user_id, operator, target_identifier, package_id,
	amount, status, provider_tx_id, balance_before, balance_after,
	provider_response, error_reason, created_at`

// TransactionRepository MySQL実装のTransactionRepository
type TransactionRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewTransactionRepository 新しいTransactionRepositoryを作成
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		tracer: otel.Tracer("transaction-repository"),
	}
}

// Save 精算記録を追加
func (r *TransactionRepository) Save(ctx context.Context, t *transaction.Transaction) error {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.transaction_id", t.TransactionID()),
		attribute.String("db.attempt_id", t.AttemptID()),
		attribute.String("db.user_id", t.UserID()),
		attribute.String("db.operator", t.Operator()),
		attribute.Int64("db.amount", t.Amount()),
		attribute.String("db.status", t.Status().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "settlement_transactions"),
	)

	query := `INSERT INTO settlement_transactions (` + transactionColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		t.TransactionID(),
		t.AttemptID(),
		t.UserID(),
		t.Operator(),
		t.TargetIdentifier(),
		nullString(t.PackageID()),
		t.Amount(),
		t.Status().String(),
		nullString(t.ProviderTxID()),
		nullInt64(t.BalanceBefore()),
		nullInt64(t.BalanceAfter()),
		t.ProviderResponse(),
		nullString(t.ErrorReason()),
		t.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if isDuplicateEntry(err) {
			return fmt.Errorf("transaction for attempt %s: %w", t.AttemptID(), transaction.ErrDuplicateAttemptID)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "transaction saved")
	return nil
}

// FindByTransactionID トランザクションIDで記録を取得
func (r *TransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	return r.findOne(ctx, "TransactionRepository.FindByTransactionID", "transaction_id", transactionID)
}

// FindByAttemptID 試行IDで記録を取得
func (r *TransactionRepository) FindByAttemptID(ctx context.Context, attemptID string) (*transaction.Transaction, error) {
	return r.findOne(ctx, "TransactionRepository.FindByAttemptID", "attempt_id", attemptID)
}

func (r *TransactionRepository) findOne(ctx context.Context, spanName, column, value string) (*transaction.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db."+column, value),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "settlement_transactions"),
	)

	query := `SELECT ` + transactionColumns + `
		FROM settlement_transactions
		WHERE ` + column + ` = ?`

	t, err := scanTransaction(r.db.conn(ctx).QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetStatus(otelcodes.Ok, "transaction not found")
			return nil, transaction.ErrTransactionNotFound
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	span.SetAttributes(
		attribute.String("db.user_id", t.UserID()),
		attribute.String("db.status", t.Status().String()),
	)
	span.SetStatus(otelcodes.Ok, "transaction found")
	return t, nil
}

// FindByUserID ユーザーIDで記録一覧を取得（新しい順、ページネーション対応）
func (r *TransactionRepository) FindByUserID(ctx context.Context, userID string, status *transaction.TransactionStatus, limit, offset int) ([]*transaction.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "settlement_transactions"),
	)

	query := `SELECT ` + transactionColumns + `
		FROM settlement_transactions
		WHERE user_id = ?`
	args := []interface{}{userID}
	if status != nil {
		span.SetAttributes(attribute.String("db.status", status.String()))
		query += ` AND status = ?`
		args = append(args, status.String())
	}
	query += `
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(transactions)))
	span.SetStatus(otelcodes.Ok, "transactions found")
	return transactions, nil
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var (
		transactionID    string
		attempt          transaction.Attempt
		packageID        sql.NullString
		status           string
		providerTxID     sql.NullString
		balanceBefore    sql.NullInt64
		balanceAfter     sql.NullInt64
		providerResponse sql.NullString
		errorReason      sql.NullString
		createdAt        time.Time
	)

	err := row.Scan(
		&transactionID,
		&attempt.AttemptID,
		&attempt.UserID,
		&attempt.Operator,
		&attempt.TargetIdentifier,
		&packageID,
		&attempt.Amount,
		&status,
		&providerTxID,
		&balanceBefore,
		&balanceAfter,
		&providerResponse,
		&errorReason,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	ts, err := transaction.NewTransactionStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction status: %w", err)
	}
	attempt.PackageID = stringPtr(packageID)

	return transaction.Restore(
		transactionID,
		attempt,
		ts,
		stringPtr(providerTxID),
		int64Ptr(balanceBefore),
		int64Ptr(balanceAfter),
		providerResponse.String,
		stringPtr(errorReason),
		createdAt,
	), nil
}
