package catalog

import "strings"

// DirectRechargePackageID パッケージ指定なしの金額直接指定チャージに付与するID
const DirectRechargePackageID = "direct-recharge"

// variablePriceMarkers 金額が請求額に依存することを示す価格の値
var variablePriceMarkers = map[string]struct{}{
	"variable":          {},
	"invoice":           {},
	"by_invoice":        {},
	"amount_required":   {},
	"depends_on_amount": {},
}

// Package カタログ上のチャージパッケージ（読み取り専用）
type Package struct {
	id                     string
	operator               string
	category               Category
	name                   string
	price                  string // 固定額の数値表現、または可変価格マーカー
	priceAlternateCurrency *string
}

// NewPackage 新しいPackageを作成
func NewPackage(id, operator string, category Category, name, price string, priceAlternateCurrency *string) *Package {
	return &Package{
		id:                     id,
		operator:               operator,
		category:               category,
		name:                   name,
		price:                  price,
		priceAlternateCurrency: priceAlternateCurrency,
	}
}

// NewDirectRechargePackage 金額直接指定用の合成パッケージを作成
func NewDirectRechargePackage(operator string, category Category) *Package {
	return &Package{
		id:       DirectRechargePackageID,
		operator: operator,
		category: category,
		name:     "Direct recharge",
		price:    "variable",
	}
}

// ID パッケージIDを返す
func (p *Package) ID() string {
	return p.id
}

// Operator 事業者キーを返す
func (p *Package) Operator() string {
	return p.operator
}

// Category カテゴリを返す
func (p *Package) Category() Category {
	return p.category
}

// Name パッケージ名を返す
func (p *Package) Name() string {
	return p.name
}

// Price 価格の生値を返す
func (p *Package) Price() string {
	return p.price
}

// PriceAlternateCurrency 代替通貨での価格表記を返す
func (p *Package) PriceAlternateCurrency() *string {
	return p.priceAlternateCurrency
}

// IsDirect 合成された直接指定パッケージかどうかを返す
func (p *Package) IsDirect() bool {
	return p.id == DirectRechargePackageID
}

// HasVariablePrice 価格が可変価格マーカーかどうかを返す
func (p *Package) HasVariablePrice() bool {
	return IsVariablePriceMarker(p.price)
}

// IsVariablePriceMarker 値が可変価格マーカーかどうかを返す
func IsVariablePriceMarker(price string) bool {
	_, ok := variablePriceMarkers[strings.ToLower(strings.TrimSpace(price))]
	return ok
}
