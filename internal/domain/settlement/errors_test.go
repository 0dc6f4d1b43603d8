package settlement

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/provider"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{name: "正常系: ラップされた残高不足", err: fmt.Errorf("reserve: %w", balance.ErrInsufficientBalance), want: ReasonInsufficientBalance},
		{name: "正常系: 事業者タイムアウト", err: fmt.Errorf("charge: %w", provider.ErrTimeout), want: ReasonProviderTimeout},
		{name: "正常系: 事業者拒否", err: provider.ErrRejected, want: ReasonProviderRejected},
		{name: "正常系: 可変価格の金額なし", err: ErrAmountRequired, want: ReasonAmountRequired},
		{name: "正常系: 検証エラー", err: fmt.Errorf("%w: operator is required", ErrValidation), want: ReasonValidation},
		{name: "異常系: 分類できないエラー", err: errors.New("connection reset"), want: ReasonPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonOf(tt.err))
		})
	}
}

func TestErrorOf(t *testing.T) {
	tests := []struct {
		name   string
		reason Reason
		want   error
	}{
		{name: "正常系: 残高不足", reason: ReasonInsufficientBalance, want: ErrInsufficientBalance},
		{name: "正常系: 事業者拒否", reason: ReasonProviderRejected, want: ErrProviderRejected},
		{name: "正常系: 試行IDの重複", reason: ReasonDuplicateAttempt, want: ErrDuplicateAttempt},
		{name: "正常系: 永続化エラー", reason: ReasonPersistence, want: ErrPersistence},
		{name: "異常系: 未知の理由", reason: Reason("Unknown"), want: ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ErrorOf(tt.reason)
			assert.ErrorIs(t, err, tt.want)
			if tt.reason != "Unknown" {
				assert.Equal(t, tt.reason, ReasonOf(err))
			}
		})
	}
}
