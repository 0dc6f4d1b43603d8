package transaction

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// 記録テーブルの列幅（VARCHARは文字数、provider_response はバイト数）
const (
	MaxOperatorLength         = 64
	MaxIdentifierLength       = 255
	MaxProviderResponseLength = 65535
)

var (
	// ErrInvalidTransactionID トランザクションIDが無効
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	// ErrInvalidAttemptID 試行IDが無効
	ErrInvalidAttemptID = errors.New("invalid attempt id")
	// ErrInvalidAmount 金額が無効
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrBalanceMismatch 処理前後の残高が金額と一致しない
	ErrBalanceMismatch = errors.New("balance after does not equal balance before minus amount")
	// ErrMissingErrorReason 失敗記録に理由がない
	ErrMissingErrorReason = errors.New("failed transaction requires an error reason")
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@:]{1,255}$`)

// Attempt 精算試行の共通情報
type Attempt struct {
	AttemptID        string
	UserID           string
	Operator         string
	TargetIdentifier string
	PackageID        *string
	Amount           int64
}

// Transaction 精算試行の結果記録（追記のみ、作成後は変更しない）
type Transaction struct {
	transactionID    string
	attempt          Attempt
	status           TransactionStatus
	providerTxID     *string
	balanceBefore    *int64
	balanceAfter     *int64
	providerResponse string
	errorReason      *string
	createdAt        time.Time
}

// NewCompleted 完了した精算の記録を作成
func NewCompleted(
	transactionID string,
	attempt Attempt,
	balanceBefore int64,
	balanceAfter int64,
	providerTxID string,
	providerResponse string,
) (*Transaction, error) {
	if err := validate(transactionID, attempt); err != nil {
		return nil, err
	}
	attempt = attempt.bounded()
	providerTxID = clipRunes(providerTxID, MaxIdentifierLength)
	providerResponse = clipBytes(providerResponse, MaxProviderResponseLength)
	if attempt.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if balanceAfter != balanceBefore-attempt.Amount {
		return nil, ErrBalanceMismatch
	}

	t := &Transaction{
		transactionID:    transactionID,
		attempt:          attempt,
		status:           TransactionStatusCompleted,
		balanceBefore:    &balanceBefore,
		balanceAfter:     &balanceAfter,
		providerResponse: providerResponse,
		createdAt:        time.Now(),
	}
	if providerTxID != "" {
		t.providerTxID = &providerTxID
	}
	return t, nil
}

// NewFailed 失敗した精算の記録を作成（金額未確定の場合 amount は0）
func NewFailed(
	transactionID string,
	attempt Attempt,
	errorReason string,
	providerResponse string,
) (*Transaction, error) {
	if err := validate(transactionID, attempt); err != nil {
		return nil, err
	}
	attempt = attempt.bounded()
	providerResponse = clipBytes(providerResponse, MaxProviderResponseLength)
	if attempt.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	if errorReason == "" {
		return nil, ErrMissingErrorReason
	}

	return &Transaction{
		transactionID:    transactionID,
		attempt:          attempt,
		status:           TransactionStatusFailed,
		providerResponse: providerResponse,
		errorReason:      &errorReason,
		createdAt:        time.Now(),
	}, nil
}

// Restore 永続化済みの値から記録を復元
func Restore(
	transactionID string,
	attempt Attempt,
	status TransactionStatus,
	providerTxID *string,
	balanceBefore *int64,
	balanceAfter *int64,
	providerResponse string,
	errorReason *string,
	createdAt time.Time,
) *Transaction {
	return &Transaction{
		transactionID:    transactionID,
		attempt:          attempt,
		status:           status,
		providerTxID:     providerTxID,
		balanceBefore:    balanceBefore,
		balanceAfter:     balanceAfter,
		providerResponse: providerResponse,
		errorReason:      errorReason,
		createdAt:        createdAt,
	}
}

func validate(transactionID string, attempt Attempt) error {
	if !idRegex.MatchString(transactionID) {
		return ErrInvalidTransactionID
	}
	if !idRegex.MatchString(attempt.AttemptID) {
		return ErrInvalidAttemptID
	}
	return nil
}

// TransactionID トランザクションIDを返す
func (t *Transaction) TransactionID() string {
	return t.transactionID
}

// AttemptID 試行IDを返す
func (t *Transaction) AttemptID() string {
	return t.attempt.AttemptID
}

// UserID ユーザーIDを返す
func (t *Transaction) UserID() string {
	return t.attempt.UserID
}

// Operator 事業者キーを返す
func (t *Transaction) Operator() string {
	return t.attempt.Operator
}

// TargetIdentifier 電話番号またはプレイヤーIDを返す
func (t *Transaction) TargetIdentifier() string {
	return t.attempt.TargetIdentifier
}

// PackageID パッケージIDを返す
func (t *Transaction) PackageID() *string {
	return t.attempt.PackageID
}

// Amount 金額を返す
func (t *Transaction) Amount() int64 {
	return t.attempt.Amount
}

// Status ステータスを返す
func (t *Transaction) Status() TransactionStatus {
	return t.status
}

// ProviderTxID 事業者側のトランザクションIDを返す
func (t *Transaction) ProviderTxID() *string {
	return t.providerTxID
}

// BalanceBefore 処理前の残高を返す
func (t *Transaction) BalanceBefore() *int64 {
	return t.balanceBefore
}

// BalanceAfter 処理後の残高を返す
func (t *Transaction) BalanceAfter() *int64 {
	return t.balanceAfter
}

// ProviderResponse 事業者の生レスポンスを返す
func (t *Transaction) ProviderResponse() string {
	return t.providerResponse
}

// ErrorReason 失敗理由を返す
func (t *Transaction) ErrorReason() *string {
	return t.errorReason
}

// CreatedAt 作成日時を返す
func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

// MustNewCompleted テスト用ヘルパー: NewCompletedを呼び出し、エラーが発生した場合はpanicする
func MustNewCompleted(transactionID string, attempt Attempt, balanceBefore, balanceAfter int64, providerTxID, providerResponse string) *Transaction {
	t, err := NewCompleted(transactionID, attempt, balanceBefore, balanceAfter, providerTxID, providerResponse)
	if err != nil {
		panic(err)
	}
	return t
}

// MustNewFailed テスト用ヘルパー: NewFailedを呼び出し、エラーが発生した場合はpanicする
func MustNewFailed(transactionID string, attempt Attempt, errorReason, providerResponse string) *Transaction {
	t, err := NewFailed(transactionID, attempt, errorReason, providerResponse)
	if err != nil {
		panic(err)
	}
	return t
}

// bounded 利用者由来の文字列を列幅に収める
func (a Attempt) bounded() Attempt {
	a.Operator = clipRunes(a.Operator, MaxOperatorLength)
	a.TargetIdentifier = clipRunes(a.TargetIdentifier, MaxIdentifierLength)
	if a.PackageID != nil {
		id := clipRunes(*a.PackageID, MaxIdentifierLength)
		a.PackageID = &id
	}
	return a
}

// clipRunes 不正なUTF-8を除き、先頭から最大 n 文字を返す
func clipRunes(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// clipBytes 不正なUTF-8を除き、文字の途中で切らずに最大 n バイトに収める
func clipBytes(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
