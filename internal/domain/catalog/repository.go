package catalog

import (
	"context"
)

// PackageRepository パッケージカタログリポジトリインターフェース
type PackageRepository interface {
	// FindByOperatorAndID 事業者とパッケージIDでパッケージを取得
	FindByOperatorAndID(ctx context.Context, operator, packageID string) (*Package, error)

	// FindByOperator 事業者のパッケージ一覧を取得
	FindByOperator(ctx context.Context, operator string) ([]*Package, error)
}

// OperatorRegistry 事業者レジストリ
type OperatorRegistry interface {
	// Find 事業者キーで事業者を取得
	Find(key string) (*Operator, error)
}
