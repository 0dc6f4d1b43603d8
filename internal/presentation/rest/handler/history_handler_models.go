package handler

import restmiddleware "recharge-server/internal/presentation/rest/middleware"

// ErrorResponse エラーレスポンス
type ErrorResponse = restmiddleware.ErrorResponse

// TransactionItem 精算記録アイテム
// @Description 精算記録アイテム
type TransactionItem struct {
	TransactionID    string  `json:"transactionId" example:"01HZX3K6M4Q8T1V9B2C7D5E0FG"`
	AttemptID        string  `json:"attemptId" example:"3f1c8a8e-7c57-4d5f-9d3c-8e7c2b5e9a10"`
	Operator         string  `json:"operator" example:"safaricom"`
	TargetIdentifier string  `json:"targetIdentifier" example:"+254712345678"`
	PackageID        *string `json:"packageId,omitempty" example:"daily-100"`
	Amount           int64   `json:"amount" example:"500"`
	Status           string  `json:"status" example:"completed"`
	ProviderTxID     *string `json:"providerTxId,omitempty" example:"prov-123"`
	BalanceBefore    *int64  `json:"balanceBefore,omitempty" example:"1000"`
	BalanceAfter     *int64  `json:"balanceAfter,omitempty" example:"500"`
	ErrorReason      *string `json:"errorReason,omitempty" example:"InsufficientBalance"`
	CreatedAt        string  `json:"createdAt" example:"2024-01-01T12:00:00Z"`
}

// TransactionHistoryResponse 精算履歴レスポンス
// @Description 精算履歴レスポンス
type TransactionHistoryResponse struct {
	Success      bool              `json:"success" example:"true"`
	Transactions []TransactionItem `json:"transactions"`
	Limit        int               `json:"limit" example:"50"`
	Offset       int               `json:"offset" example:"0"`
}
