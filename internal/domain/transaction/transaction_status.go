package transaction

import (
	"fmt"
)

// TransactionStatus 精算結果ステータスを表す値オブジェクト
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed" // 完了
	TransactionStatusFailed    TransactionStatus = "failed"    // 失敗
)

// NewTransactionStatus 新しいTransactionStatusを作成
func NewTransactionStatus(s string) (TransactionStatus, error) {
	switch s {
	case "completed", "failed":
		return TransactionStatus(s), nil
	default:
		return "", fmt.Errorf("invalid transaction status: %s", s)
	}
}

// String 文字列表現を返す
func (ts TransactionStatus) String() string {
	return string(ts)
}

// Valid 有効なトランザクションステータスかどうかを返す
func (ts TransactionStatus) Valid() bool {
	switch ts {
	case TransactionStatusCompleted, TransactionStatusFailed:
		return true
	default:
		return false
	}
}

// IsCompleted 完了状態かどうかを返す
func (ts TransactionStatus) IsCompleted() bool {
	return ts == TransactionStatusCompleted
}

// IsFailed 失敗状態かどうかを返す
func (ts TransactionStatus) IsFailed() bool {
	return ts == TransactionStatusFailed
}
