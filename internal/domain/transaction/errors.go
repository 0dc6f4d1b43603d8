package transaction

import "errors"

var (
	// ErrTransactionNotFound トランザクションが見つからないエラー
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateAttemptID 同一試行IDの記録が既に存在するエラー
	ErrDuplicateAttemptID = errors.New("duplicate attempt id")
)
