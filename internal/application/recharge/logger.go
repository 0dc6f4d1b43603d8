package recharge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/domain/transaction"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// TransactionLogger 精算記録の書き込み口
//
// 書き込みは呼び出し元のキャンセルから切り離し、独自のタイムアウトで行う。
// 失敗した場合はエラーログ、メトリクス、監査アラートを発行する。
type TransactionLogger struct {
	repo      transaction.TransactionRepository
	publisher AuditAlertPublisher
	timeout   time.Duration
	logger    *otelinfra.Logger
	metrics   *otelinfra.Metrics
	tracer    trace.Tracer
}

// NewTransactionLogger 新しいTransactionLoggerを作成
func NewTransactionLogger(
	repo transaction.TransactionRepository,
	publisher AuditAlertPublisher,
	timeout time.Duration,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *TransactionLogger {
	return &TransactionLogger{
		repo:      repo,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("transaction-logger"),
	}
}

// Record 精算記録を追記
//
// 同じ試行IDの記録が既にある場合は書き込まずに nil を返す。
// それ以外の失敗は settlement.ErrAuditWrite をラップして返す。
func (l *TransactionLogger) Record(ctx context.Context, t *transaction.Transaction) error {
	ctx, span := l.tracer.Start(ctx, "TransactionLogger.Record")
	defer span.End()

	span.SetAttributes(
		attribute.String("transaction_id", t.TransactionID()),
		attribute.String("attempt_id", t.AttemptID()),
		attribute.String("status", t.Status().String()),
	)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	err := l.repo.Save(writeCtx, t)
	if err == nil {
		span.SetStatus(otelcodes.Ok, "recorded")
		return nil
	}
	if errors.Is(err, transaction.ErrDuplicateAttemptID) {
		l.logger.Warn(ctx, "Settlement already recorded for attempt", map[string]interface{}{
			"attempt_id":     t.AttemptID(),
			"transaction_id": t.TransactionID(),
			"status":         t.Status().String(),
		})
		span.SetStatus(otelcodes.Ok, "already recorded")
		return nil
	}

	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	l.alert(ctx, t, err)
	return fmt.Errorf("%w: %w", settlement.ErrAuditWrite, err)
}

// FindByAttemptID 試行IDで記録を取得
func (l *TransactionLogger) FindByAttemptID(ctx context.Context, attemptID string) (*transaction.Transaction, error) {
	t, err := l.repo.FindByAttemptID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", settlement.ErrPersistence, err)
	}
	return t, nil
}

func (l *TransactionLogger) alert(ctx context.Context, t *transaction.Transaction, cause error) {
	fields := map[string]interface{}{
		"transaction_id": t.TransactionID(),
		"attempt_id":     t.AttemptID(),
		"user_id":        t.UserID(),
		"status":         t.Status().String(),
		"amount":         t.Amount(),
	}
	if before := t.BalanceBefore(); before != nil {
		fields["balance_before"] = *before
	}
	if after := t.BalanceAfter(); after != nil {
		fields["balance_after"] = *after
	}
	l.logger.Error(ctx, "Failed to write settlement record", cause, fields)
	l.metrics.RecordAuditWriteFailure(ctx, t.Status().String())

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.publisher.PublishAuditFailure(publishCtx, t, cause); err != nil {
		l.logger.Error(ctx, "Failed to publish audit alert", err, map[string]interface{}{
			"attempt_id": t.AttemptID(),
		})
	}
}
