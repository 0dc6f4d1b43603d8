package catalog

import (
	"fmt"
)

// Category 事業者カテゴリを表す値オブジェクト
type Category string

const (
	CategoryMobile Category = "mobile" // 携帯チャージ
	CategoryGame   Category = "game"   // ゲーム内通貨
)

// NewCategory 新しいCategoryを作成
func NewCategory(s string) (Category, error) {
	switch s {
	case "mobile", "game":
		return Category(s), nil
	default:
		return "", fmt.Errorf("invalid category: %s", s)
	}
}

// String 文字列表現を返す
func (c Category) String() string {
	return string(c)
}

// IsGame ゲームカテゴリかどうかを返す
func (c Category) IsGame() bool {
	return c == CategoryGame
}

// TargetField 対象識別子のリクエストフィールド名を返す
func (c Category) TargetField() string {
	if c.IsGame() {
		return "playerId"
	}
	return "phoneNumber"
}
