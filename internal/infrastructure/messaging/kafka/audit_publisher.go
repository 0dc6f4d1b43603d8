package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"recharge-server/internal/domain/transaction"
	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

// messageWriter kafka.Writerのうち使用する部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditAlert 記録の書き込みに失敗した精算結果の通知イベント
type AuditAlert struct {
	Event            string    `json:"event"`
	TransactionID    string    `json:"transactionId"`
	AttemptID        string    `json:"attemptId"`
	UserID           string    `json:"userId"`
	Operator         string    `json:"operator"`
	TargetIdentifier string    `json:"targetIdentifier"`
	PackageID        *string   `json:"packageId,omitempty"`
	Amount           int64     `json:"amount"`
	Status           string    `json:"status"`
	ProviderTxID     *string   `json:"providerTxId,omitempty"`
	BalanceBefore    *int64    `json:"balanceBefore,omitempty"`
	BalanceAfter     *int64    `json:"balanceAfter,omitempty"`
	ErrorReason      *string   `json:"errorReason,omitempty"`
	ProviderResponse string    `json:"providerResponse,omitempty"`
	Cause            string    `json:"cause"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// NewAuditAlert 未保存の記録から通知イベントを作成
func NewAuditAlert(t *transaction.Transaction, cause error) AuditAlert {
	a := AuditAlert{
		Event:            "settlement.audit_write_failed",
		TransactionID:    t.TransactionID(),
		AttemptID:        t.AttemptID(),
		UserID:           t.UserID(),
		Operator:         t.Operator(),
		TargetIdentifier: t.TargetIdentifier(),
		PackageID:        t.PackageID(),
		Amount:           t.Amount(),
		Status:           t.Status().String(),
		ProviderTxID:     t.ProviderTxID(),
		BalanceBefore:    t.BalanceBefore(),
		BalanceAfter:     t.BalanceAfter(),
		ErrorReason:      t.ErrorReason(),
		ProviderResponse: t.ProviderResponse(),
		OccurredAt:       time.Now().UTC(),
	}
	if cause != nil {
		a.Cause = cause.Error()
	}
	return a
}

// NewWriter 設定からkafka.Writerを作成
func NewWriter(cfg *config.KafkaConfig, logger *otelinfra.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(context.Background(), fmt.Sprintf(msg, args...), nil)
		}),
	}
}

// AuditPublisher Kafkaへ監査アラートを送信
type AuditPublisher struct {
	writer messageWriter
}

// NewAuditPublisher 新しいAuditPublisherを作成
func NewAuditPublisher(writer messageWriter) *AuditPublisher {
	return &AuditPublisher{writer: writer}
}

// PublishAuditFailure 記録の書き込み失敗を通知
//
// キーは試行IDで、同じ試行のアラートは同じパーティションに入る。
func (p *AuditPublisher) PublishAuditFailure(ctx context.Context, t *transaction.Transaction, cause error) error {
	payload, err := json.Marshal(NewAuditAlert(t, cause))
	if err != nil {
		return fmt.Errorf("failed to encode audit alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(t.AttemptID()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("settlement.audit_write_failed")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit alert: %w", err)
	}
	return nil
}

// Close ライターを閉じる
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher Kafka無効時にログのみでアラートを出す
type LogPublisher struct {
	logger *otelinfra.Logger
}

// NewLogPublisher 新しいLogPublisherを作成
func NewLogPublisher(logger *otelinfra.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishAuditFailure 未保存の記録をエラーログに出力
func (p *LogPublisher) PublishAuditFailure(ctx context.Context, t *transaction.Transaction, cause error) error {
	payload, err := json.Marshal(NewAuditAlert(t, cause))
	if err != nil {
		return fmt.Errorf("failed to encode audit alert: %w", err)
	}
	p.logger.Error(ctx, "Unsaved settlement record", cause, map[string]interface{}{
		"attempt_id": t.AttemptID(),
		"record":     string(payload),
	})
	return nil
}

// Close 何もしない
func (p *LogPublisher) Close() error {
	return nil
}
