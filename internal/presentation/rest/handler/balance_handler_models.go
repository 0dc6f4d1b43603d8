package handler

import "github.com/shopspring/decimal"

// BalanceResponse 残高レスポンス
type BalanceResponse struct {
	Success   bool   `json:"success" example:"true"`
	UserID    string `json:"userId" example:"user_1"`
	Balance   int64  `json:"balance" example:"1000"`
	Held      int64  `json:"held" example:"0"`
	Available int64  `json:"available" example:"1000"`
}

// CreditRequest 残高加算リクエスト（管理API）
type CreditRequest struct {
	Amount *decimal.Decimal `json:"amount" swaggertype:"number" example:"1000"`
	Reason string           `json:"reason" example:"manual top-up"`
}

// CreditResponse 残高加算レスポンス
type CreditResponse struct {
	Success       bool   `json:"success" example:"true"`
	CreditID      string `json:"creditId" example:"01HZX3K6M4Q8T1V9B2C7D5E0FG"`
	UserID        string `json:"userId" example:"user_1"`
	Amount        int64  `json:"amount" example:"1000"`
	BalanceBefore int64  `json:"balanceBefore" example:"0"`
	Balance       int64  `json:"balance" example:"1000"`
}
