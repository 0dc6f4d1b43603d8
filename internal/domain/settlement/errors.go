package settlement

import (
	"errors"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/domain/provider"
	"recharge-server/internal/domain/reservation"
	"recharge-server/internal/domain/transaction"
)

var (
	// ErrValidation リクエスト形式エラー
	ErrValidation = errors.New("validation error")
	// ErrInvalidAmount 金額が正の整数でない
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidPriceFormat パッケージ価格の形式が不正
	ErrInvalidPriceFormat = errors.New("invalid price format")
	// ErrAmountRequired 可変価格パッケージに金額指定がない
	ErrAmountRequired = errors.New("amount required for variable price package")
	// ErrUnsupportedDirectAmount ゲームカテゴリへの金額直接指定
	ErrUnsupportedDirectAmount = errors.New("direct amount not supported for game operators")
	// ErrMissingChargeSpecification パッケージも金額も指定されていない
	ErrMissingChargeSpecification = errors.New("either packageId or amount is required")
	// ErrPersistence 台帳または記録の書き込み失敗
	ErrPersistence = errors.New("persistence error")
	// ErrAuditWrite 精算結果の記録に失敗した
	ErrAuditWrite = errors.New("failed to write settlement record")
	// ErrReservationExpired 確保が期限切れで解放された
	ErrReservationExpired = errors.New("reservation expired")

	ErrPackageNotFound     = catalog.ErrPackageNotFound
	ErrInsufficientBalance = balance.ErrInsufficientBalance
	ErrProviderUnreachable = provider.ErrUnreachable
	ErrProviderTimeout     = provider.ErrTimeout
	ErrProviderRejected    = provider.ErrRejected
	ErrDuplicateAttempt    = reservation.ErrDuplicateAttempt
)

// Reason 失敗理由コード（取引記録の error_reason に保存される）
type Reason string

const (
	ReasonValidation                 Reason = "ValidationError"
	ReasonInvalidAmount              Reason = "InvalidAmount"
	ReasonPackageNotFound            Reason = "PackageNotFound"
	ReasonInvalidPriceFormat         Reason = "InvalidPriceFormat"
	ReasonAmountRequired             Reason = "AmountRequired"
	ReasonUnsupportedDirectAmount    Reason = "UnsupportedDirectAmount"
	ReasonMissingChargeSpecification Reason = "MissingChargeSpecification"
	ReasonInsufficientBalance        Reason = "InsufficientBalance"
	ReasonProviderUnreachable        Reason = "ProviderUnreachable"
	ReasonProviderTimeout            Reason = "ProviderTimeout"
	ReasonProviderRejected           Reason = "ProviderRejected"
	ReasonDuplicateAttempt           Reason = "DuplicateAttempt"
	ReasonReservationExpired         Reason = "ReservationExpired"
	ReasonPersistence                Reason = "PersistenceError"
)

// String 文字列表現を返す
func (r Reason) String() string {
	return string(r)
}

var reasonTable = []struct {
	err    error
	reason Reason
}{
	{ErrValidation, ReasonValidation},
	{ErrInvalidAmount, ReasonInvalidAmount},
	{ErrPackageNotFound, ReasonPackageNotFound},
	{ErrInvalidPriceFormat, ReasonInvalidPriceFormat},
	{ErrAmountRequired, ReasonAmountRequired},
	{ErrUnsupportedDirectAmount, ReasonUnsupportedDirectAmount},
	{ErrMissingChargeSpecification, ReasonMissingChargeSpecification},
	{ErrInsufficientBalance, ReasonInsufficientBalance},
	{ErrProviderUnreachable, ReasonProviderUnreachable},
	{ErrProviderTimeout, ReasonProviderTimeout},
	{ErrProviderRejected, ReasonProviderRejected},
	{ErrDuplicateAttempt, ReasonDuplicateAttempt},
	{transaction.ErrDuplicateAttemptID, ReasonDuplicateAttempt},
	{ErrReservationExpired, ReasonReservationExpired},
}

// ReasonOf エラーから失敗理由コードを求める
func ReasonOf(err error) Reason {
	for _, r := range reasonTable {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonPersistence
}

// ErrorOf 失敗理由コードに対応するエラーを返す（記録済みの失敗を再生する際に使う）
func ErrorOf(reason Reason) error {
	for _, r := range reasonTable {
		if r.reason == reason {
			return r.err
		}
	}
	return ErrPersistence
}
