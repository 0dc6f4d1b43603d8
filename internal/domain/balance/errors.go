package balance

import "errors"

var (
	// ErrInsufficientBalance 利用可能残高不足エラー
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount 無効な金額エラー
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrBalanceNotFound 残高レコードが見つからないエラー
	ErrBalanceNotFound = errors.New("balance not found")
	// ErrHeldUnderflow 確保額を超える確定・解放が要求された
	ErrHeldUnderflow = errors.New("held amount underflow")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
)
