package transaction

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttempt(amount int64) Attempt {
	pkg := "pkg-500"
	return Attempt{
		AttemptID:        "attempt-1",
		UserID:           "user123",
		Operator:         "safaricom",
		TargetIdentifier: "+254700000000",
		PackageID:        &pkg,
		Amount:           amount,
	}
}

func TestNewCompleted(t *testing.T) {
	tests := []struct {
		name          string
		transactionID string
		attempt       Attempt
		balanceBefore int64
		balanceAfter  int64
		wantErr       error
	}{
		{
			name:          "正常系: 完了記録",
			transactionID: "01HZX3K5Q2W8V9N4M7T6R1Y0PA",
			attempt:       testAttempt(500),
			balanceBefore: 1000,
			balanceAfter:  500,
		},
		{
			name:          "異常系: 残高差が金額と一致しない",
			transactionID: "tx1",
			attempt:       testAttempt(500),
			balanceBefore: 1000,
			balanceAfter:  600,
			wantErr:       ErrBalanceMismatch,
		},
		{
			name:          "異常系: 金額0",
			transactionID: "tx1",
			attempt:       testAttempt(0),
			balanceBefore: 1000,
			balanceAfter:  1000,
			wantErr:       ErrInvalidAmount,
		},
		{
			name:          "異常系: 無効なトランザクションID",
			transactionID: "",
			attempt:       testAttempt(500),
			balanceBefore: 1000,
			balanceAfter:  500,
			wantErr:       ErrInvalidTransactionID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCompleted(tt.transactionID, tt.attempt, tt.balanceBefore, tt.balanceAfter, "prov-1", `{"status":"ok"}`)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TransactionStatusCompleted, got.Status())
			assert.Equal(t, tt.balanceBefore, *got.BalanceBefore())
			assert.Equal(t, tt.balanceAfter, *got.BalanceAfter())
			assert.Equal(t, "prov-1", *got.ProviderTxID())
			assert.Nil(t, got.ErrorReason())
		})
	}
}

func TestNewFailed(t *testing.T) {
	t.Run("正常系: 金額未確定の失敗記録", func(t *testing.T) {
		got, err := NewFailed("tx1", testAttempt(0), "AmountRequired", "")
		require.NoError(t, err)
		assert.Equal(t, TransactionStatusFailed, got.Status())
		assert.Equal(t, "AmountRequired", *got.ErrorReason())
		assert.Nil(t, got.BalanceBefore())
		assert.Nil(t, got.BalanceAfter())
		assert.Nil(t, got.ProviderTxID())
	})

	t.Run("正常系: 事業者の応答を保持する", func(t *testing.T) {
		got, err := NewFailed("tx1", testAttempt(500), "ProviderRejected", `{"error":"invalid msisdn"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"error":"invalid msisdn"}`, got.ProviderResponse())
		assert.Equal(t, int64(500), got.Amount())
	})

	t.Run("異常系: 理由なし", func(t *testing.T) {
		_, err := NewFailed("tx1", testAttempt(500), "", "")
		assert.ErrorIs(t, err, ErrMissingErrorReason)
	})

	t.Run("異常系: 無効な試行ID", func(t *testing.T) {
		a := testAttempt(500)
		a.AttemptID = ""
		_, err := NewFailed("tx1", a, "ProviderRejected", "")
		assert.ErrorIs(t, err, ErrInvalidAttemptID)
	})
}

func TestNewCompleted_BoundsOversizedFields(t *testing.T) {
	attempt := testAttempt(500)
	attempt.Operator = strings.Repeat("o", 300)
	// 3バイト文字が上限をまたぐ応答
	response := strings.Repeat("a", MaxProviderResponseLength-1) + strings.Repeat("円", 30000)
	providerTxID := strings.Repeat("x", 1000)

	got, err := NewCompleted("tx1", attempt, 1000, 500, providerTxID, response)
	require.NoError(t, err)

	assert.Len(t, got.Operator(), MaxOperatorLength)
	require.NotNil(t, got.ProviderTxID())
	assert.Len(t, *got.ProviderTxID(), MaxIdentifierLength)
	assert.LessOrEqual(t, len(got.ProviderResponse()), MaxProviderResponseLength)
	assert.True(t, utf8.ValidString(got.ProviderResponse()))
	assert.True(t, strings.HasPrefix(response, got.ProviderResponse()))
	assert.Equal(t, int64(500), got.Amount())
}

func TestNewFailed_BoundsOversizedFields(t *testing.T) {
	tests := []struct {
		name         string
		operator     string
		response     string
		wantOperator string
		wantResponse string
	}{
		{
			name:         "正常系: 列幅内の値はそのまま",
			operator:     "safaricom",
			response:     `{"status":"failed"}`,
			wantOperator: "safaricom",
			wantResponse: `{"status":"failed"}`,
		},
		{
			name:         "正常系: 長すぎる事業者名は文字数で切り詰める",
			operator:     strings.Repeat("事", 100),
			wantOperator: strings.Repeat("事", MaxOperatorLength),
		},
		{
			name:         "正常系: 不正なUTF-8は除く",
			operator:     "safari\xffcom",
			response:     "bad\xfe\xffbody",
			wantOperator: "safaricom",
			wantResponse: "badbody",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := testAttempt(0)
			attempt.Operator = tt.operator

			got, err := NewFailed("tx1", attempt, "ValidationError", tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOperator, got.Operator())
			assert.Equal(t, tt.wantResponse, got.ProviderResponse())
		})
	}
}
