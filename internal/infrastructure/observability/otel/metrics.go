package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 精算試行数（status, reason, operator別）
	SettlementCount metric.Int64Counter

	// 精算後の残高
	UserBalance metric.Int64Gauge

	// 事業者呼び出しの所要時間
	ProviderLatency metric.Float64Histogram

	// 精算記録の書き込み失敗（監査上の重大事象）
	AuditWriteFailureCount metric.Int64Counter

	// 期限切れで解放された確保
	ExpiredReservationCount metric.Int64Counter

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	settlementCount, err := meter.Int64Counter(
		"settlements_total",
		metric.WithDescription("Total number of settlement attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	userBalance, err := meter.Int64Gauge(
		"user_balance",
		metric.WithDescription("User balance after a settlement"),
	)
	if err != nil {
		return nil, err
	}

	providerLatency, err := meter.Float64Histogram(
		"provider_call_seconds",
		metric.WithDescription("Recharge provider call latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	auditWriteFailureCount, err := meter.Int64Counter(
		"audit_write_failures_total",
		metric.WithDescription("Total number of settlement records that could not be persisted"),
	)
	if err != nil {
		return nil, err
	}

	expiredReservationCount, err := meter.Int64Counter(
		"reservations_expired_total",
		metric.WithDescription("Total number of stale holds released by the sweeper"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		SettlementCount:         settlementCount,
		UserBalance:             userBalance,
		ProviderLatency:         providerLatency,
		AuditWriteFailureCount:  auditWriteFailureCount,
		ExpiredReservationCount: expiredReservationCount,
		RequestCount:            requestCount,
		ResponseTime:            responseTime,
		ErrorCount:              errorCount,
	}, nil
}

// RecordSettlement 精算結果を記録
func (m *Metrics) RecordSettlement(ctx context.Context, status, reason, operator string) {
	m.SettlementCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("reason", reason),
			attribute.String("operator", operator),
		),
	)
}

// RecordBalance 残高を記録
func (m *Metrics) RecordBalance(ctx context.Context, userID string, balance int64) {
	m.UserBalance.Record(ctx, balance,
		metric.WithAttributes(
			attribute.String("user_id", userID),
		),
	)
}

// RecordProviderLatency 事業者呼び出しの所要時間を記録
func (m *Metrics) RecordProviderLatency(ctx context.Context, operator, outcome string, seconds float64) {
	m.ProviderLatency.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("operator", operator),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordAuditWriteFailure 精算記録の書き込み失敗を記録
func (m *Metrics) RecordAuditWriteFailure(ctx context.Context, status string) {
	m.AuditWriteFailureCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}

// RecordExpiredReservations 期限切れで解放した確保数を記録
func (m *Metrics) RecordExpiredReservations(ctx context.Context, count int64) {
	m.ExpiredReservationCount.Add(ctx, count)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
