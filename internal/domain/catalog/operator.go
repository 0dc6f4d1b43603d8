package catalog

// Operator チャージ先事業者
type Operator struct {
	key         string
	category    Category
	displayName string
}

// NewOperator 新しいOperatorを作成
func NewOperator(key string, category Category, displayName string) *Operator {
	return &Operator{
		key:         key,
		category:    category,
		displayName: displayName,
	}
}

// Key 事業者キーを返す
func (o *Operator) Key() string {
	return o.key
}

// Category カテゴリを返す
func (o *Operator) Category() Category {
	return o.category
}

// DisplayName 表示名を返す
func (o *Operator) DisplayName() string {
	return o.displayName
}
