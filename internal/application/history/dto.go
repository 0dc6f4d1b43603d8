package history

import "recharge-server/internal/domain/transaction"

// GetTransactionHistoryRequest 精算履歴取得リクエスト
type GetTransactionHistoryRequest struct {
	UserID string
	Limit  int
	Offset int
	Status string // optional: "completed" or "failed"
}

// GetTransactionHistoryResponse 精算履歴取得レスポンス
type GetTransactionHistoryResponse struct {
	Transactions []*transaction.Transaction
	Limit        int
	Offset       int
}
