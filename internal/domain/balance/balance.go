package balance

import (
	"regexp"
)

// MaxAmount 最大金額 (10兆)
const MaxAmount = 10_000_000_000_000

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Balance ユーザー残高エンティティ
//
// amount は最小通貨単位の整数。held は進行中の精算のために確保された額で、
// 常に 0 <= held <= amount を満たす。
type Balance struct {
	userID  string
	amount  int64
	held    int64
	version int
}

// ValidateUserID ユーザーIDの形式を検証
func ValidateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

// NewBalance 新しいBalanceエンティティを作成
func NewBalance(userID string, amount, held int64, version int) (*Balance, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if amount < 0 || amount > MaxAmount {
		return nil, ErrBalanceOutOfRange
	}
	if held < 0 || held > amount {
		return nil, ErrBalanceOutOfRange
	}
	return &Balance{
		userID:  userID,
		amount:  amount,
		held:    held,
		version: version,
	}, nil
}

// Empty 残高0の新規レコードを作成
func Empty(userID string) (*Balance, error) {
	return NewBalance(userID, 0, 0, 0)
}

// UserID ユーザーIDを返す
func (b *Balance) UserID() string {
	return b.userID
}

// Amount 残高を返す
func (b *Balance) Amount() int64 {
	return b.amount
}

// Held 確保中の額を返す
func (b *Balance) Held() int64 {
	return b.held
}

// Available 利用可能残高を返す
func (b *Balance) Available() int64 {
	return b.amount - b.held
}

// Version バージョンを返す
func (b *Balance) Version() int {
	return b.version
}

// Debit 即時に引き落とす
func (b *Balance) Debit(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount > b.Available() {
		return ErrInsufficientBalance
	}
	b.amount -= amount
	b.version++
	return nil
}

// Hold 利用可能残高から指定額を確保する
func (b *Balance) Hold(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount > b.Available() {
		return ErrInsufficientBalance
	}
	b.held += amount
	b.version++
	return nil
}

// CommitHold 確保済みの額を引き落としに変換する
func (b *Balance) CommitHold(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount > b.held {
		return ErrHeldUnderflow
	}
	b.held -= amount
	b.amount -= amount
	b.version++
	return nil
}

// ReleaseHold 確保済みの額を解放する
func (b *Balance) ReleaseHold(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount > b.held {
		return ErrHeldUnderflow
	}
	b.held -= amount
	b.version++
	return nil
}

// Credit 残高を加算する
func (b *Balance) Credit(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if b.amount > MaxAmount-amount {
		return ErrBalanceOutOfRange
	}
	b.amount += amount
	b.version++
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 || amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// MustNewBalance テスト用ヘルパー: NewBalanceを呼び出し、エラーが発生した場合はpanicする
func MustNewBalance(userID string, amount, held int64, version int) *Balance {
	b, err := NewBalance(userID, amount, held, version)
	if err != nil {
		panic(err)
	}
	return b
}
