package reservation

import "errors"

var (
	// ErrHoldNotFound 確保レコードが見つからないエラー
	ErrHoldNotFound = errors.New("hold not found")
	// ErrDuplicateAttempt 同一試行IDの確保が既に存在するエラー
	ErrDuplicateAttempt = errors.New("duplicate attempt")
	// ErrHoldAlreadyFinalized 確保が既に確定または解放済み
	ErrHoldAlreadyFinalized = errors.New("hold already finalized")
)
