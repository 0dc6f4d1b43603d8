package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	rechargeapp "recharge-server/internal/application/recharge"
	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/settlement"
	"recharge-server/internal/presentation/grpc/interceptor"
)

// Settler チャージ精算を実行する
type Settler interface {
	Settle(ctx context.Context, req *rechargeapp.SettleRequest) (*rechargeapp.SettleResponse, error)
}

// BalanceLedger 残高の参照と加算
type BalanceLedger interface {
	Balance(ctx context.Context, userID string) (*balance.Balance, error)
	Credit(ctx context.Context, userID string, amount int64, reason, requester string) (*balance.Credit, error)
}

// SettlementHandler gRPC精算サービスハンドラー
type SettlementHandler struct {
	settler Settler
	ledger  BalanceLedger
}

// NewSettlementHandler 新しいSettlementHandlerを作成
func NewSettlementHandler(settler Settler, ledger BalanceLedger) *SettlementHandler {
	return &SettlementHandler{
		settler: settler,
		ledger:  ledger,
	}
}

// Settle チャージ精算
func (h *SettlementHandler) Settle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := authorizedUser(ctx, req)
	if err != nil {
		return nil, err
	}

	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := h.settler.Settle(ctx, &rechargeapp.SettleRequest{
		AttemptID:   stringField(req, "attemptId"),
		UserID:      userID,
		Operator:    stringField(req, "operator"),
		PhoneNumber: stringField(req, "phoneNumber"),
		PlayerID:    stringField(req, "playerId"),
		PackageID:   stringField(req, "packageId"),
		Amount:      amount,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"success":       true,
		"message":       resp.Message,
		"transactionId": resp.TransactionID,
		"attemptId":     resp.AttemptID,
		"amount":        resp.Amount,
		"newBalance":    resp.NewBalance,
		"providerTxId":  resp.ProviderTxID,
		"replayed":      resp.Replayed,
	})
}

// GetBalance 残高取得
func (h *SettlementHandler) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := authorizedUser(ctx, req)
	if err != nil {
		return nil, err
	}

	b, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"success":   true,
		"userId":    b.UserID(),
		"balance":   b.Amount(),
		"held":      b.Held(),
		"available": b.Available(),
	})
}

// AdminHandler gRPC管理サービスハンドラー
type AdminHandler struct {
	ledger BalanceLedger
}

// NewAdminHandler 新しいAdminHandlerを作成
func NewAdminHandler(ledger BalanceLedger) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// Credit 残高加算
func (h *AdminHandler) Credit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "userId")
	if err := balance.ValidateUserID(userID); err != nil {
		return nil, toStatus(err)
	}

	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, toStatus(err)
	}
	if amount == nil {
		return nil, toStatus(fmt.Errorf("%w: amount must be a positive integer", settlement.ErrInvalidAmount))
	}
	whole, ok := balance.WholeAmount(*amount)
	if !ok {
		return nil, toStatus(fmt.Errorf("%w: amount must be a positive integer", settlement.ErrInvalidAmount))
	}
	reason := stringField(req, "reason")
	if reason == "" {
		return nil, toStatus(fmt.Errorf("%w: reason is required", settlement.ErrValidation))
	}

	requester := interceptor.RequesterFromContext(ctx)
	if requester == "" {
		requester = "admin"
	}

	credit, err := h.ledger.Credit(ctx, userID, whole, reason, requester)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"success":       true,
		"creditId":      credit.CreditID(),
		"userId":        credit.UserID(),
		"amount":        credit.Amount(),
		"balanceBefore": credit.BalanceBefore(),
		"balance":       credit.BalanceAfter(),
	})
}

// authorizedUser トークンのユーザーIDを返す（userId 指定時は一致を確認）
func authorizedUser(ctx context.Context, req *structpb.Struct) (string, error) {
	tokenUserID := interceptor.UserIDFromContext(ctx)
	if tokenUserID == "" {
		return "", status.Error(codes.Unauthenticated, "user_id not found in token")
	}
	if userID := stringField(req, "userId"); userID != "" && userID != tokenUserID {
		return "", status.Error(codes.PermissionDenied, "userId does not match token")
	}
	return tokenUserID, nil
}

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// decimalField 数値または数値文字列のフィールドを取得（未指定は nil）
func decimalField(req *structpb.Struct, name string) (*decimal.Decimal, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		d := decimal.NewFromFloat(kind.NumberValue)
		return &d, nil
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(kind.StringValue))
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", settlement.ErrValidation, name)
		}
		return &d, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a number", settlement.ErrValidation, name)
	}
}
