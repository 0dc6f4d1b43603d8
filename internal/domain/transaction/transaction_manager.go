package transaction

import (
	"context"
)

// TransactionManager トランザクション管理インターフェース
type TransactionManager interface {
	// WithTransaction トランザクション内で関数を実行
	//
	// fn に渡される ctx にはトランザクションが載っており、リポジトリはそれを使って実行する。
	// fn がエラーを返すとロールバックされる。
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
