package catalog

import (
	"fmt"

	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/infrastructure/config"
)

// Registry 設定ファイルから構築した事業者レジストリ（起動後は読み取り専用）
type Registry struct {
	operators map[string]*catalog.Operator
}

// NewRegistry 事業者設定からレジストリを作成
func NewRegistry(configs []config.OperatorConfig) (*Registry, error) {
	operators := make(map[string]*catalog.Operator, len(configs))
	for _, c := range configs {
		category, err := catalog.NewCategory(c.Category)
		if err != nil {
			return nil, fmt.Errorf("operator %q: %w", c.Key, err)
		}
		name := c.DisplayName
		if name == "" {
			name = c.Key
		}
		operators[c.Key] = catalog.NewOperator(c.Key, category, name)
	}
	return &Registry{operators: operators}, nil
}

// Find 事業者キーで事業者を取得
func (r *Registry) Find(key string) (*catalog.Operator, error) {
	op, ok := r.operators[key]
	if !ok {
		return nil, catalog.ErrOperatorNotFound
	}
	return op, nil
}

// Len 登録済み事業者数を返す
func (r *Registry) Len() int {
	return len(r.operators)
}
