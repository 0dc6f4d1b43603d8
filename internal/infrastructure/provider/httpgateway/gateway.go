package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"recharge-server/internal/domain/provider"
	"recharge-server/internal/infrastructure/config"
)

const (
	maxResponseBytes = 1 << 20
	errorDetailLimit = 512
)

// chargeBody 事業者へ送信するリクエストボディ
type chargeBody struct {
	Operator  string `json:"operator"`
	Target    string `json:"target"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type endpoint struct {
	cfg     config.ProviderEndpointConfig
	limiter *rate.Limiter
}

// Gateway HTTPで事業者APIを呼び出すGateway実装
type Gateway struct {
	client    *http.Client
	endpoints map[string]*endpoint
	timeout   time.Duration
	tracer    trace.Tracer
}

// New 事業者設定からGatewayを作成
func New(operators []config.OperatorConfig, timeout time.Duration) *Gateway {
	return NewWithClient(operators, timeout, &http.Client{})
}

// NewWithClient HTTPクライアントを指定してGatewayを作成
func NewWithClient(operators []config.OperatorConfig, timeout time.Duration, client *http.Client) *Gateway {
	endpoints := make(map[string]*endpoint, len(operators))
	for _, op := range operators {
		ep := &endpoint{cfg: op.Endpoint}
		if op.Endpoint.RateLimit > 0 {
			ep.limiter = rate.NewLimiter(rate.Limit(op.Endpoint.RateLimit), op.Endpoint.Burst)
		}
		endpoints[op.Key] = ep
	}
	return &Gateway{
		client:    client,
		endpoints: endpoints,
		timeout:   timeout,
		tracer:    otel.Tracer("provider-gateway"),
	}
}

// Charge 事業者にチャージを1回だけ要求する
func (g *Gateway) Charge(ctx context.Context, req *provider.ChargeRequest) (*provider.Result, error) {
	ctx, span := g.tracer.Start(ctx, "ProviderGateway.Charge", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("provider.operator", req.Operator),
		attribute.String("provider.attempt_id", req.AttemptID),
		attribute.Int64("provider.amount", req.Amount),
	)

	ep, ok := g.endpoints[req.Operator]
	if !ok {
		err := fmt.Errorf("%w: %s: %w", provider.ErrUnreachable, req.Operator, provider.ErrUnknownOperator)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return &provider.Result{ErrorDetail: err.Error()}, err
	}

	timeout := g.timeout
	if ep.cfg.Timeout > 0 {
		timeout = ep.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := g.call(ctx, ep, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.String("provider.tx_id", result.ProviderTxID))
	span.SetStatus(otelcodes.Ok, "charge accepted")
	return result, nil
}

func (g *Gateway) call(ctx context.Context, ep *endpoint, req *provider.ChargeRequest) (*provider.Result, error) {
	if ep.limiter != nil {
		if err := ep.limiter.Wait(ctx); err != nil {
			return &provider.Result{ErrorDetail: err.Error()}, fmt.Errorf("%w: rate limit wait: %v", provider.ErrTimeout, err)
		}
	}

	payload, err := json.Marshal(chargeBody{
		Operator:  req.Operator,
		Target:    req.TargetIdentifier,
		Amount:    req.Amount,
		Reference: req.AttemptID,
	})
	if err != nil {
		return &provider.Result{ErrorDetail: err.Error()}, fmt.Errorf("%w: failed to encode request: %v", provider.ErrUnreachable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, ep.cfg.Method, ep.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return &provider.Result{ErrorDetail: err.Error()}, fmt.Errorf("%w: failed to build request: %v", provider.ErrUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range ep.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set(ep.cfg.IdempotencyHeader, req.AttemptID)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return &provider.Result{ErrorDetail: err.Error()}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &provider.Result{StatusCode: resp.StatusCode, ErrorDetail: err.Error()}, classifyTransportError(ctx, err)
	}

	return evaluate(ep.cfg, resp.StatusCode, body)
}

// evaluate 事業者ごとの成功条件でレスポンスを判定
func evaluate(cfg config.ProviderEndpointConfig, status int, body []byte) (*provider.Result, error) {
	result := &provider.Result{
		StatusCode:  status,
		RawResponse: string(body),
	}
	if cfg.TxIDPath != "" {
		result.ProviderTxID = gjson.GetBytes(body, cfg.TxIDPath).String()
	}

	if status >= cfg.SuccessStatusMin && status <= cfg.SuccessStatusMax && gjson.ValidBytes(body) && successIndicator(cfg, body) {
		result.Success = true
		return result, nil
	}

	result.ErrorDetail = errorDetail(cfg, body)
	return result, fmt.Errorf("%w: status %d: %s", provider.ErrRejected, status, result.ErrorDetail)
}

func successIndicator(cfg config.ProviderEndpointConfig, body []byte) bool {
	v := gjson.GetBytes(body, cfg.SuccessPath)
	if !v.Exists() {
		return false
	}
	if cfg.SuccessValue == "" {
		return v.Bool()
	}
	return v.String() == cfg.SuccessValue
}

func errorDetail(cfg config.ProviderEndpointConfig, body []byte) string {
	if cfg.ErrorPath != "" {
		if v := gjson.GetBytes(body, cfg.ErrorPath); v.Exists() && v.String() != "" {
			return truncate([]byte(v.String()), errorDetailLimit)
		}
	}
	if len(body) == 0 {
		return "empty response"
	}
	return truncate(body, errorDetailLimit)
}

// truncate 文字の途中で切らずに最大 limit バイトの文字列にする
func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return strings.ToValidUTF8(string(body), "")
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return strings.ToValidUTF8(string(body[:cut]), "")
}

func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", provider.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", provider.ErrUnreachable, err)
}
