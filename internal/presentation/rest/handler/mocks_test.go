package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"

	rechargeapp "recharge-server/internal/application/recharge"
	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/transaction"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
	restmiddleware "recharge-server/internal/presentation/rest/middleware"
)

// MockSettler モック精算サービス
type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, req *rechargeapp.SettleRequest) (*rechargeapp.SettleResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rechargeapp.SettleResponse), args.Error(1)
}

// MockBalanceLedger モック台帳
type MockBalanceLedger struct {
	mock.Mock
}

func (m *MockBalanceLedger) Balance(ctx context.Context, userID string) (*balance.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.Balance), args.Error(1)
}

func (m *MockBalanceLedger) Credit(ctx context.Context, userID string, amount int64, reason, requester string) (*balance.Credit, error) {
	args := m.Called(ctx, userID, amount, reason, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.Credit), args.Error(1)
}

// MockTransactionRepository モック精算記録リポジトリ
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Save(ctx context.Context, t *transaction.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByAttemptID(ctx context.Context, attemptID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByUserID(ctx context.Context, userID string, status *transaction.TransactionStatus, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, userID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func testLogger() *otelinfra.Logger {
	return otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test"))
}

// serve エラーハンドリングミドルウェアを通してハンドラーを実行
func serve(h echo.HandlerFunc, method, target, body string, setup func(c echo.Context)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}

	err := restmiddleware.ErrorHandlerMiddleware(testLogger())(h)(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}
