package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	rechargeapp "recharge-server/internal/application/recharge"
	"recharge-server/internal/domain/balance"
)

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
