package recharge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/domain/provider"
	"recharge-server/internal/domain/reservation"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/domain/transaction"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
)

const successMessage = "Recharge successful"

var (
	attemptIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]{1,128}$`)
	phoneRegex     = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	playerIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)
)

// RechargeApplicationService チャージ精算アプリケーションサービス
//
// 価格確定、残高確保、事業者呼び出し、確定または解放、記録の順に1試行を処理する。
// 事業者呼び出しの間はデータベースのロックを保持しない。
type RechargeApplicationService struct {
	operators catalog.OperatorRegistry
	resolver  PriceResolver
	ledger    Ledger
	gateway   provider.Gateway
	recorder  *TransactionLogger
	guard     AttemptGuard
	logger    *otelinfra.Logger
	metrics   *otelinfra.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRechargeApplicationService 新しいRechargeApplicationServiceを作成
func NewRechargeApplicationService(
	operators catalog.OperatorRegistry,
	resolver PriceResolver,
	ledger Ledger,
	gateway provider.Gateway,
	recorder *TransactionLogger,
	guard AttemptGuard,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *RechargeApplicationService {
	return &RechargeApplicationService{
		operators: operators,
		resolver:  resolver,
		ledger:    ledger,
		gateway:   gateway,
		recorder:  recorder,
		guard:     guard,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("recharge-service"),
		now:       time.Now,
	}
}

// Settle チャージを1試行分精算
//
// 失敗した場合は settlement パッケージのエラーをラップして返す。
// 記録の書き込みだけが失敗した場合は精算結果を返し、AuditError に失敗を設定する。
func (s *RechargeApplicationService) Settle(ctx context.Context, req *SettleRequest) (*SettleResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RechargeApplicationService.Settle")
	defer span.End()

	attemptID := strings.TrimSpace(req.AttemptID)
	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("attempt_id", attemptID),
		attribute.String("user_id", req.UserID),
		attribute.String("operator", req.Operator),
		attribute.String("package_id", req.PackageID),
	)

	s.logger.Info(ctx, "Processing recharge", map[string]interface{}{
		"attempt_id": attemptID,
		"user_id":    req.UserID,
		"operator":   req.Operator,
		"package_id": req.PackageID,
	})

	if !attemptIDRegex.MatchString(attemptID) {
		return nil, s.reject(ctx, span, fmt.Errorf("%w: invalid attemptId", settlement.ErrValidation))
	}

	// 処理中の試行IDを排他（Redisが使えない場合は一意制約に任せて続行）
	release, err := s.guard.Acquire(ctx, attemptID)
	switch {
	case errors.Is(err, settlement.ErrDuplicateAttempt):
		return nil, s.reject(ctx, span, err)
	case err != nil:
		s.logger.Warn(ctx, "Attempt guard unavailable", map[string]interface{}{
			"attempt_id": attemptID,
			"error":      err.Error(),
		})
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn(ctx, "Failed to release attempt guard", map[string]interface{}{
					"attempt_id": attemptID,
					"error":      err.Error(),
				})
			}
		}()
	}

	// 記録済みの試行は副作用なしで結果を返す
	if resp, found, err := s.replay(ctx, attemptID, req); found || err != nil {
		if err != nil {
			return nil, s.reject(ctx, span, err)
		}
		span.SetStatus(otelcodes.Ok, "replayed")
		return resp, nil
	}

	attempt := transaction.Attempt{
		AttemptID: attemptID,
		UserID:    req.UserID,
		Operator:  req.Operator,
	}

	operator, target, err := s.validate(req)
	if err != nil {
		return nil, s.fail(ctx, span, attempt, err, "")
	}
	attempt.TargetIdentifier = target

	resolution, err := s.resolver.Resolve(ctx, operator, req.PackageID, req.Amount)
	if err != nil {
		return nil, s.fail(ctx, span, attempt, err, "")
	}
	attempt.Amount = resolution.Amount
	if id := resolution.Package.ID(); id != "" {
		attempt.PackageID = &id
	}

	hold, err := s.ledger.Reserve(ctx, req.UserID, attemptID, resolution.Amount)
	if errors.Is(err, settlement.ErrDuplicateAttempt) {
		return nil, s.reject(ctx, span, err)
	}
	if err != nil {
		return nil, s.fail(ctx, span, attempt, err, "")
	}

	result, err := s.charge(ctx, attempt)
	if err != nil {
		s.release(ctx, hold)
		return nil, s.fail(ctx, span, attempt, err, providerResponse(result))
	}

	before, after, err := s.ledger.Commit(context.WithoutCancel(ctx), hold)
	if err != nil {
		s.logger.Error(ctx, "Provider charged but ledger commit failed", err, map[string]interface{}{
			"attempt_id":     attemptID,
			"user_id":        req.UserID,
			"amount":         attempt.Amount,
			"provider_tx_id": result.ProviderTxID,
		})
		s.metrics.RecordError(ctx, "commit_after_charge")
		return nil, s.fail(ctx, span, attempt, err, result.RawResponse)
	}

	resp := &SettleResponse{
		TransactionID: ulid.Make().String(),
		AttemptID:     attemptID,
		Status:        transaction.TransactionStatusCompleted.String(),
		Amount:        attempt.Amount,
		BalanceBefore: before,
		NewBalance:    after,
		ProviderTxID:  result.ProviderTxID,
		Message:       successMessage,
	}

	record, err := transaction.NewCompleted(resp.TransactionID, attempt, before, after, result.ProviderTxID, result.RawResponse)
	if err != nil {
		resp.AuditError = fmt.Errorf("%w: %w", settlement.ErrAuditWrite, err)
		s.logger.Error(ctx, "Failed to build settlement record", err, map[string]interface{}{
			"attempt_id": attemptID,
		})
		s.metrics.RecordAuditWriteFailure(ctx, resp.Status)
	} else if err := s.recorder.Record(ctx, record); err != nil {
		resp.AuditError = err
	}
	if resp.AuditError != nil {
		span.RecordError(resp.AuditError)
	}

	s.metrics.RecordSettlement(ctx, resp.Status, "", attempt.Operator)
	s.logger.Info(ctx, "Recharge settled", map[string]interface{}{
		"attempt_id":     attemptID,
		"transaction_id": resp.TransactionID,
		"user_id":        req.UserID,
		"amount":         attempt.Amount,
		"balance_before": before,
		"balance_after":  after,
		"provider_tx_id": result.ProviderTxID,
	})

	span.SetStatus(otelcodes.Ok, "recharge settled")
	return resp, nil
}

// ExpireReservations 作成から maxAge を過ぎた確保を解放し、失敗として記録
//
// 処理中にプロセスが停止して確定も解放もされなかった確保を回収する。
func (s *RechargeApplicationService) ExpireReservations(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "RechargeApplicationService.ExpireReservations")
	defer span.End()

	cutoff := s.now().Add(-maxAge)
	holds, err := s.ledger.StaleHolds(ctx, cutoff, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, err
	}

	expired := 0
	for _, hold := range holds {
		if err := s.ledger.Release(ctx, hold); err != nil {
			// 確定と競合した場合は対象外
			if !errors.Is(err, reservation.ErrHoldAlreadyFinalized) {
				s.logger.Error(ctx, "Failed to release stale reservation", err, map[string]interface{}{
					"attempt_id": hold.AttemptID(),
					"user_id":    hold.UserID(),
				})
			}
			continue
		}
		expired++

		attempt := transaction.Attempt{
			AttemptID: hold.AttemptID(),
			UserID:    hold.UserID(),
			Amount:    hold.Amount(),
		}
		record, err := transaction.NewFailed(ulid.Make().String(), attempt, settlement.ReasonReservationExpired.String(), "")
		if err != nil {
			s.logger.Error(ctx, "Failed to build settlement record", err, map[string]interface{}{
				"attempt_id": hold.AttemptID(),
			})
			continue
		}
		_ = s.recorder.Record(ctx, record)
		s.metrics.RecordSettlement(ctx, transaction.TransactionStatusFailed.String(), settlement.ReasonReservationExpired.String(), "")
	}

	if expired > 0 {
		s.metrics.RecordExpiredReservations(ctx, int64(expired))
		s.logger.Warn(ctx, "Expired stale reservations", map[string]interface{}{
			"count":  expired,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
	span.SetAttributes(attribute.Int("expired_count", expired))
	span.SetStatus(otelcodes.Ok, "reservations swept")
	return expired, nil
}

// replay 記録済みの試行の結果を返す
func (s *RechargeApplicationService) replay(ctx context.Context, attemptID string, req *SettleRequest) (*SettleResponse, bool, error) {
	record, err := s.recorder.FindByAttemptID(ctx, attemptID)
	if errors.Is(err, transaction.ErrTransactionNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if record.UserID() != req.UserID {
		return nil, true, fmt.Errorf("attempt %s belongs to another user: %w", attemptID, settlement.ErrDuplicateAttempt)
	}

	if record.Status() == transaction.TransactionStatusFailed {
		reason := settlement.ReasonPersistence
		if r := record.ErrorReason(); r != nil {
			reason = settlement.Reason(*r)
		}
		return nil, true, fmt.Errorf("attempt %s already failed: %w", attemptID, settlement.ErrorOf(reason))
	}

	if !sameRequest(record, req) {
		return nil, true, fmt.Errorf("attempt %s was used for a different request: %w", attemptID, settlement.ErrDuplicateAttempt)
	}

	resp := &SettleResponse{
		TransactionID: record.TransactionID(),
		AttemptID:     attemptID,
		Status:        record.Status().String(),
		Amount:        record.Amount(),
		Message:       successMessage,
		Replayed:      true,
	}
	if v := record.BalanceBefore(); v != nil {
		resp.BalanceBefore = *v
	}
	if v := record.BalanceAfter(); v != nil {
		resp.NewBalance = *v
	}
	if v := record.ProviderTxID(); v != nil {
		resp.ProviderTxID = *v
	}
	return resp, true, nil
}

// sameRequest 完了記録と同じ内容の再送か判定する
//
// 固定価格のパッケージは指定金額を使わないため、金額は直接指定のときだけ比べる。
func sameRequest(record *transaction.Transaction, req *SettleRequest) bool {
	if record.Operator() != req.Operator {
		return false
	}
	target := record.TargetIdentifier()
	if target != strings.TrimSpace(req.PhoneNumber) && target != strings.TrimSpace(req.PlayerID) {
		return false
	}

	recordedPackage := ""
	if id := record.PackageID(); id != nil && *id != catalog.DirectRechargePackageID {
		recordedPackage = *id
	}
	if recordedPackage != req.PackageID {
		return false
	}
	if req.PackageID != "" {
		return true
	}
	if req.Amount == nil {
		return false
	}
	v, ok := balance.WholeAmount(*req.Amount)
	return ok && v == record.Amount()
}

// validate リクエストの形式を検証し、事業者と対象識別子を返す
func (s *RechargeApplicationService) validate(req *SettleRequest) (*catalog.Operator, string, error) {
	if err := balance.ValidateUserID(req.UserID); err != nil {
		return nil, "", fmt.Errorf("%w: userId is required", settlement.ErrValidation)
	}
	if req.Operator == "" {
		return nil, "", fmt.Errorf("%w: operator is required", settlement.ErrValidation)
	}
	if len(req.Operator) > transaction.MaxOperatorLength {
		return nil, "", fmt.Errorf("%w: operator must be at most %d characters", settlement.ErrValidation, transaction.MaxOperatorLength)
	}
	operator, err := s.operators.Find(req.Operator)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unknown operator %q", settlement.ErrValidation, req.Operator)
	}

	field := operator.Category().TargetField()
	if operator.Category().IsGame() {
		target := strings.TrimSpace(req.PlayerID)
		if !playerIDRegex.MatchString(target) {
			return nil, "", fmt.Errorf("%w: %s is required", settlement.ErrValidation, field)
		}
		return operator, target, nil
	}

	target := strings.TrimSpace(req.PhoneNumber)
	if !phoneRegex.MatchString(target) {
		return nil, "", fmt.Errorf("%w: %s is required", settlement.ErrValidation, field)
	}
	return operator, target, nil
}

// charge 事業者を1回だけ呼び出す
//
// 成功を示さない応答は ErrProviderRejected として扱う。
func (s *RechargeApplicationService) charge(ctx context.Context, attempt transaction.Attempt) (*provider.Result, error) {
	start := time.Now()
	result, err := s.gateway.Charge(ctx, &provider.ChargeRequest{
		Operator:         attempt.Operator,
		TargetIdentifier: attempt.TargetIdentifier,
		Amount:           attempt.Amount,
		AttemptID:        attempt.AttemptID,
	})

	switch {
	case err != nil && !isProviderFailure(err):
		err = fmt.Errorf("%w: %w", settlement.ErrProviderUnreachable, err)
	case err == nil && (result == nil || !result.Success):
		err = fmt.Errorf("%w: %s", settlement.ErrProviderRejected, providerResponse(result))
	}

	outcome := "success"
	if err != nil {
		outcome = settlement.ReasonOf(err).String()
	}
	s.metrics.RecordProviderLatency(ctx, attempt.Operator, outcome, time.Since(start).Seconds())
	return result, err
}

// release 確保を解放（呼び出し元のキャンセルに影響されない）
func (s *RechargeApplicationService) release(ctx context.Context, hold *reservation.Hold) {
	if err := s.ledger.Release(context.WithoutCancel(ctx), hold); err != nil {
		// 解放できなかった確保は期限切れ回収で処理される
		s.logger.Error(ctx, "Failed to release reservation", err, map[string]interface{}{
			"attempt_id": hold.AttemptID(),
			"user_id":    hold.UserID(),
		})
		s.metrics.RecordError(ctx, "reservation_release")
	}
}

// fail 失敗を記録し、呼び出し元に返すエラーを返す
//
// ユーザーIDが不正な場合は記録しない。記録の失敗は TransactionLogger が通知する。
func (s *RechargeApplicationService) fail(ctx context.Context, span trace.Span, attempt transaction.Attempt, cause error, raw string) error {
	reason := settlement.ReasonOf(cause)
	span.RecordError(cause)
	span.SetStatus(otelcodes.Error, cause.Error())
	span.SetAttributes(attribute.String("error_reason", reason.String()))
	s.metrics.RecordSettlement(ctx, transaction.TransactionStatusFailed.String(), reason.String(), attempt.Operator)

	fields := map[string]interface{}{
		"attempt_id": attempt.AttemptID,
		"user_id":    attempt.UserID,
		"operator":   attempt.Operator,
		"amount":     attempt.Amount,
		"reason":     reason.String(),
	}
	if reason == settlement.ReasonPersistence {
		s.logger.Error(ctx, "Recharge failed", cause, fields)
	} else {
		fields["error"] = cause.Error()
		s.logger.Warn(ctx, "Recharge failed", fields)
	}

	if balance.ValidateUserID(attempt.UserID) != nil {
		return cause
	}
	record, err := transaction.NewFailed(ulid.Make().String(), attempt, reason.String(), raw)
	if err != nil {
		s.logger.Error(ctx, "Failed to build settlement record", err, fields)
		return cause
	}
	_ = s.recorder.Record(ctx, record)
	return cause
}

// reject 記録を残さずに拒否する（重複試行、試行IDの形式不正）
func (s *RechargeApplicationService) reject(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	s.logger.Warn(ctx, "Recharge rejected", map[string]interface{}{
		"error": err.Error(),
	})
	return err
}

func isProviderFailure(err error) bool {
	return errors.Is(err, settlement.ErrProviderUnreachable) ||
		errors.Is(err, settlement.ErrProviderTimeout) ||
		errors.Is(err, settlement.ErrProviderRejected)
}

func providerResponse(result *provider.Result) string {
	if result == nil {
		return ""
	}
	if result.RawResponse != "" {
		return result.RawResponse
	}
	return result.ErrorDetail
}
