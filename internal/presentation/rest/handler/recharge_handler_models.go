package handler

import "github.com/shopspring/decimal"

// RechargeRequest チャージリクエスト
// @Description phoneNumber（モバイル）または playerId（ゲーム）のいずれかと、packageId または amount を指定する
type RechargeRequest struct {
	UserID      string           `json:"userId" example:"user_1"`
	Operator    string           `json:"operator" example:"safaricom"`
	PhoneNumber string           `json:"phoneNumber,omitempty" example:"+254712345678"`
	PlayerID    string           `json:"playerId,omitempty" example:"player-42"`
	PackageID   string           `json:"packageId,omitempty" example:"daily-100"`
	Amount      *decimal.Decimal `json:"amount,omitempty" swaggertype:"number" example:"500"`
	AttemptID   string           `json:"attemptId,omitempty" example:"3f1c8a8e-7c57-4d5f-9d3c-8e7c2b5e9a10"`
}

// RechargeResponse チャージ成功レスポンス
type RechargeResponse struct {
	Success       bool   `json:"success" example:"true"`
	Message       string `json:"message" example:"Recharge successful"`
	TransactionID string `json:"transactionId" example:"01HZX3K6M4Q8T1V9B2C7D5E0FG"`
	AttemptID     string `json:"attemptId" example:"3f1c8a8e-7c57-4d5f-9d3c-8e7c2b5e9a10"`
	Amount        int64  `json:"amount" example:"500"`
	NewBalance    int64  `json:"newBalance" example:"500"`
	ProviderTxID  string `json:"providerTxId,omitempty" example:"prov-123"`
	Replayed      bool   `json:"replayed,omitempty" example:"false"`
}
