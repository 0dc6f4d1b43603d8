package fake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"recharge-server/internal/domain/provider"
)

// Outcome 疑似事業者の応答種別
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeReject      Outcome = "reject"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeUnreachable Outcome = "unreachable"
)

// ParseOutcome 文字列からOutcomeを作成
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeSuccess, OutcomeReject, OutcomeTimeout, OutcomeUnreachable:
		return o, nil
	default:
		return "", fmt.Errorf("invalid fake provider outcome: %s", s)
	}
}

// Gateway 決められた結果を返す疑似Gateway（サンドボックス・テスト用）
type Gateway struct {
	mu       sync.Mutex
	outcome  Outcome
	requests []provider.ChargeRequest
	calls    int64
}

// New 新しい疑似Gatewayを作成
func New(outcome Outcome) *Gateway {
	return &Gateway{outcome: outcome}
}

// SetOutcome 以降の呼び出しの結果を変更
func (g *Gateway) SetOutcome(outcome Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcome = outcome
}

// Calls 呼び出し回数を返す
func (g *Gateway) Calls() int64 {
	return atomic.LoadInt64(&g.calls)
}

// Requests 受け取った要求の写しを返す
func (g *Gateway) Requests() []provider.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]provider.ChargeRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// Charge 設定された結果を返す
func (g *Gateway) Charge(ctx context.Context, req *provider.ChargeRequest) (*provider.Result, error) {
	atomic.AddInt64(&g.calls, 1)

	g.mu.Lock()
	g.requests = append(g.requests, *req)
	outcome := g.outcome
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &provider.Result{ErrorDetail: err.Error()}, fmt.Errorf("%w: %v", provider.ErrTimeout, err)
	}

	switch outcome {
	case OutcomeSuccess:
		txID := "fake-" + ulid.Make().String()
		return &provider.Result{
			Success:      true,
			ProviderTxID: txID,
			RawResponse:  fmt.Sprintf(`{"status":"success","reference":%q}`, txID),
			StatusCode:   200,
		}, nil
	case OutcomeReject:
		raw := `{"status":"failed","error":"rejected by sandbox"}`
		return &provider.Result{RawResponse: raw, ErrorDetail: "rejected by sandbox", StatusCode: 200},
			fmt.Errorf("%w: rejected by sandbox", provider.ErrRejected)
	case OutcomeTimeout:
		return &provider.Result{ErrorDetail: "sandbox timeout"}, fmt.Errorf("%w: sandbox timeout", provider.ErrTimeout)
	default:
		return &provider.Result{ErrorDetail: "sandbox unreachable"}, fmt.Errorf("%w: sandbox unreachable", provider.ErrUnreachable)
	}
}
