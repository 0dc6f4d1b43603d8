package catalog

import "errors"

var (
	// ErrPackageNotFound パッケージが見つからないエラー
	ErrPackageNotFound = errors.New("package not found")
	// ErrOperatorNotFound 事業者が見つからないエラー
	ErrOperatorNotFound = errors.New("operator not found")
)
