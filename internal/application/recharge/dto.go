package recharge

import "github.com/shopspring/decimal"

// SettleRequest チャージ精算リクエスト
type SettleRequest struct {
	AttemptID   string // 空の場合は生成する
	UserID      string
	Operator    string
	PhoneNumber string
	PlayerID    string
	PackageID   string
	Amount      *decimal.Decimal
}

// SettleResponse チャージ精算レスポンス
type SettleResponse struct {
	TransactionID string
	AttemptID     string
	Status        string
	Amount        int64
	BalanceBefore int64
	NewBalance    int64
	ProviderTxID  string
	Message       string
	Replayed      bool  // 記録済みの結果を返した
	AuditError    error // 精算は完了したが記録の書き込みに失敗した
}
