package handler

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/domain/transaction"
)

// errorDomain ErrorInfo に設定するドメイン名
const errorDomain = "recharge.v1"

var codeTable = []struct {
	err  error
	code codes.Code
}{
	{settlement.ErrValidation, codes.InvalidArgument},
	{settlement.ErrInvalidAmount, codes.InvalidArgument},
	{settlement.ErrInvalidPriceFormat, codes.Internal},
	{settlement.ErrAmountRequired, codes.InvalidArgument},
	{settlement.ErrUnsupportedDirectAmount, codes.InvalidArgument},
	{settlement.ErrMissingChargeSpecification, codes.InvalidArgument},
	{balance.ErrInvalidAmount, codes.InvalidArgument},
	{balance.ErrBalanceOutOfRange, codes.InvalidArgument},
	{balance.ErrInvalidUserID, codes.InvalidArgument},
	{settlement.ErrInsufficientBalance, codes.FailedPrecondition},
	{settlement.ErrPackageNotFound, codes.NotFound},
	{settlement.ErrDuplicateAttempt, codes.Aborted},
	{transaction.ErrDuplicateAttemptID, codes.Aborted},
	{settlement.ErrProviderRejected, codes.Internal},
	{settlement.ErrReservationExpired, codes.Internal},
	{settlement.ErrProviderTimeout, codes.DeadlineExceeded},
	{settlement.ErrProviderUnreachable, codes.Unavailable},
}

// toStatus ドメインエラーをgRPCステータスに変換
//
// 失敗理由コードは ErrorInfo.Reason に設定する。永続化エラーと未分類のエラーは内部メッセージを返さない。
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	message := "an unexpected error occurred"
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			code = entry.code
			message = err.Error()
			break
		}
	}

	reason := settlement.ReasonOf(err)
	switch {
	case errors.Is(err, balance.ErrInvalidAmount), errors.Is(err, balance.ErrBalanceOutOfRange):
		reason = settlement.ReasonInvalidAmount
	case errors.Is(err, balance.ErrInvalidUserID):
		reason = settlement.ReasonValidation
	}

	st := status.New(code, message)
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason.String(), Domain: errorDomain}); derr == nil {
		st = detailed
	}
	return st.Err()
}

// ReasonFromStatus gRPCエラーから失敗理由コードを取り出す
func ReasonFromStatus(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info.GetReason()
		}
	}
	return ""
}
