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

	"recharge-server/internal/domain/reservation"
)

// HoldRepository MySQL実装のHoldRepository
type HoldRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewHoldRepository 新しいHoldRepositoryを作成
func NewHoldRepository(db *DB) *HoldRepository {
	return &HoldRepository{
		db:     db,
		tracer: otel.Tracer("hold-repository"),
	}
}

// Create 確保を作成
func (r *HoldRepository) Create(ctx context.Context, h *reservation.Hold) error {
	ctx, span := r.tracer.Start(ctx, "HoldRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.attempt_id", h.AttemptID()),
		attribute.String("db.user_id", h.UserID()),
		attribute.Int64("db.amount", h.Amount()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "holds"),
	)

	query := `
		INSERT INTO holds (attempt_id, user_id, amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		h.AttemptID(),
		h.UserID(),
		h.Amount(),
		h.Status().String(),
		h.CreatedAt(),
		h.UpdatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if isDuplicateEntry(err) {
			return fmt.Errorf("hold %s: %w", h.AttemptID(), reservation.ErrDuplicateAttempt)
		}
		return fmt.Errorf("failed to create hold: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "hold created")
	return nil
}

// FindByAttemptID 試行IDで確保を取得
func (r *HoldRepository) FindByAttemptID(ctx context.Context, attemptID string) (*reservation.Hold, error) {
	ctx, span := r.tracer.Start(ctx, "HoldRepository.FindByAttemptID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.attempt_id", attemptID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "holds"),
	)

	query := `
		SELECT attempt_id, user_id, amount, status, created_at, updated_at
		FROM holds
		WHERE attempt_id = ?
	`

	h, err := scanHold(r.db.conn(ctx).QueryRowContext(ctx, query, attemptID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetStatus(otelcodes.Ok, "hold not found")
			return nil, reservation.ErrHoldNotFound
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find hold: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "hold found")
	return h, nil
}

// UpdateStatus 確保中のレコードのステータスを更新
func (r *HoldRepository) UpdateStatus(ctx context.Context, h *reservation.Hold) error {
	ctx, span := r.tracer.Start(ctx, "HoldRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.attempt_id", h.AttemptID()),
		attribute.String("db.status", h.Status().String()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "holds"),
	)

	query := `
		UPDATE holds
		SET status = ?, updated_at = ?
		WHERE attempt_id = ? AND status = 'pending'
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		h.Status().String(),
		h.UpdatedAt(),
		h.AttemptID(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update hold: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Error, "hold already finalized")
		return reservation.ErrHoldAlreadyFinalized
	}

	span.SetStatus(otelcodes.Ok, "hold updated")
	return nil
}

// FindStalePending 指定時刻より前に作成された確保中レコードを古い順に取得
func (r *HoldRepository) FindStalePending(ctx context.Context, before time.Time, limit int) ([]*reservation.Hold, error) {
	ctx, span := r.tracer.Start(ctx, "HoldRepository.FindStalePending")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.before", before.Format(time.RFC3339)),
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "holds"),
	)

	query := `
		SELECT attempt_id, user_id, amount, status, created_at, updated_at
		FROM holds
		WHERE status = 'pending' AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, before, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query stale holds: %w", err)
	}
	defer rows.Close()

	var holds []*reservation.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		holds = append(holds, h)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate holds: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(holds)))
	span.SetStatus(otelcodes.Ok, "stale holds found")
	return holds, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHold(row rowScanner) (*reservation.Hold, error) {
	var (
		attemptID string
		userID    string
		amount    int64
		status    string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&attemptID, &userID, &amount, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return reservation.Restore(attemptID, userID, amount, reservation.HoldStatus(status), createdAt, updatedAt), nil
}
