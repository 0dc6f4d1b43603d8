package provider

import (
	"context"
	"errors"
)

var (
	// ErrUnreachable 事業者から応答が得られなかった
	ErrUnreachable = errors.New("provider unreachable")
	// ErrTimeout 事業者呼び出しがタイムアウトした
	ErrTimeout = errors.New("provider timeout")
	// ErrRejected 事業者が明示的に失敗を返した
	ErrRejected = errors.New("provider rejected")
	// ErrUnknownOperator ゲートウェイに設定のない事業者
	ErrUnknownOperator = errors.New("operator not configured for provider gateway")
)

// ChargeRequest 事業者へのチャージ要求
type ChargeRequest struct {
	Operator         string
	TargetIdentifier string
	Amount           int64
	AttemptID        string // 事業者側の冪等キーとして送信する
}

// Result 事業者呼び出しの結果
type Result struct {
	Success      bool
	ProviderTxID string
	RawResponse  string
	ErrorDetail  string
	StatusCode   int
}

// Gateway 事業者チャージの呼び出し口
//
// 1回の呼び出しで外部への要求はちょうど1回。失敗時は Result と共に
// ErrUnreachable / ErrTimeout / ErrRejected のいずれかをラップしたエラーを返す。
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*Result, error)
}
