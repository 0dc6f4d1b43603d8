package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/domain/transaction"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   codes.Code
		wantReason string
	}{
		{"異常系: 入力不正", fmt.Errorf("%w: operator is required", settlement.ErrValidation), codes.InvalidArgument, "ValidationError"},
		{"異常系: 金額不正", settlement.ErrInvalidAmount, codes.InvalidArgument, "InvalidAmount"},
		{"異常系: 価格形式不正", settlement.ErrInvalidPriceFormat, codes.Internal, "InvalidPriceFormat"},
		{"異常系: 金額必須", settlement.ErrAmountRequired, codes.InvalidArgument, "AmountRequired"},
		{"異常系: 直接金額非対応", settlement.ErrUnsupportedDirectAmount, codes.InvalidArgument, "UnsupportedDirectAmount"},
		{"異常系: 指定なし", settlement.ErrMissingChargeSpecification, codes.InvalidArgument, "MissingChargeSpecification"},
		{"異常系: 残高の金額不正", balance.ErrInvalidAmount, codes.InvalidArgument, "InvalidAmount"},
		{"異常系: 残高の範囲外", balance.ErrBalanceOutOfRange, codes.InvalidArgument, "InvalidAmount"},
		{"異常系: ユーザーID不正", balance.ErrInvalidUserID, codes.InvalidArgument, "ValidationError"},
		{"異常系: 残高不足", settlement.ErrInsufficientBalance, codes.FailedPrecondition, "InsufficientBalance"},
		{"異常系: パッケージなし", settlement.ErrPackageNotFound, codes.NotFound, "PackageNotFound"},
		{"異常系: 試行の重複", settlement.ErrDuplicateAttempt, codes.Aborted, "DuplicateAttempt"},
		{"異常系: 記録の重複", transaction.ErrDuplicateAttemptID, codes.Aborted, "DuplicateAttempt"},
		{"異常系: 拒否", settlement.ErrProviderRejected, codes.Internal, "ProviderRejected"},
		{"異常系: 確保の期限切れ", settlement.ErrReservationExpired, codes.Internal, "ReservationExpired"},
		{"異常系: タイムアウト", settlement.ErrProviderTimeout, codes.DeadlineExceeded, "ProviderTimeout"},
		{"異常系: 到達不能", settlement.ErrProviderUnreachable, codes.Unavailable, "ProviderUnreachable"},
		{"異常系: 永続化エラー", fmt.Errorf("%w: connection refused", settlement.ErrPersistence), codes.Internal, "PersistenceError"},
		{"異常系: 未分類", errors.New("boom"), codes.Internal, "PersistenceError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := toStatus(tt.err)
			assert.Equal(t, tt.wantCode, status.Code(err))
			assert.Equal(t, tt.wantReason, ReasonFromStatus(err))
		})
	}
}

func TestToStatus_HidesInternalMessage(t *testing.T) {
	err := toStatus(fmt.Errorf("%w: dial tcp 10.0.0.5:3306", settlement.ErrPersistence))

	st, _ := status.FromError(err)
	assert.NotContains(t, st.Message(), "10.0.0.5")
}

func TestToStatus_KeepsExistingStatus(t *testing.T) {
	in := status.Error(codes.PermissionDenied, "denied")

	err := toStatus(in)

	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Empty(t, ReasonFromStatus(err))
}

func TestReasonFromStatus_NotStatus(t *testing.T) {
	assert.Empty(t, ReasonFromStatus(errors.New("plain")))
}
