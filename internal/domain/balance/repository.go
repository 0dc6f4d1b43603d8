package balance

import (
	"context"
)

// BalanceRepository 残高リポジトリインターフェース
//
// ctx にトランザクションが載っている場合はその中で実行される。
type BalanceRepository interface {
	// Ensure レコードが存在しなければ残高0で作成する
	Ensure(ctx context.Context, userID string) error

	// FindForUpdate 行ロックを取得して残高を取得
	FindForUpdate(ctx context.Context, userID string) (*Balance, error)

	// FindByUserID ロックなしで残高を取得
	FindByUserID(ctx context.Context, userID string) (*Balance, error)

	// Save 残高を保存
	Save(ctx context.Context, b *Balance) error
}

// CreditRepository 残高加算履歴リポジトリインターフェース
type CreditRepository interface {
	Save(ctx context.Context, c *Credit) error
}
