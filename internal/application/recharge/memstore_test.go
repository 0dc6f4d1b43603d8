package recharge

import (
	"context"
	"sort"
	"sync"
	"time"

	"recharge-server/internal/domain/balance"
	"recharge-server/internal/domain/catalog"
	"recharge-server/internal/domain/reservation"
	"recharge-server/internal/domain/transaction"
)

type memTxKey struct{}

type balanceRow struct {
	amount  int64
	held    int64
	version int
}

type holdRow struct {
	attemptID string
	userID    string
	amount    int64
	status    reservation.HoldStatus
	createdAt time.Time
	updatedAt time.Time
}

// memStore 残高・確保・記録のインメモリ実装
//
// WithTransaction は全体を1つのミューテックスで直列化し、エラー時は開始時点の状態に戻す。
type memStore struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex

	balances map[string]balanceRow
	holds    map[string]holdRow
	credits  []*balance.Credit
	records  []*transaction.Transaction

	recordErr error
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[string]balanceRow),
		holds:    make(map[string]holdRow),
	}
}

func (m *memStore) seedBalance(userID string, amount int64) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	m.balances[userID] = balanceRow{amount: amount, version: 1}
}

func (m *memStore) seedHold(attemptID, userID string, amount int64, createdAt time.Time) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	row := m.balances[userID]
	row.held += amount
	row.version++
	m.balances[userID] = row
	m.holds[attemptID] = holdRow{
		attemptID: attemptID,
		userID:    userID,
		amount:    amount,
		status:    reservation.HoldStatusPending,
		createdAt: createdAt,
		updatedAt: createdAt,
	}
}

func (m *memStore) balanceOf(userID string) (amount, held int64) {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()
	row := m.balances[userID]
	return row.amount, row.held
}

func (m *memStore) holdStatus(attemptID string) reservation.HoldStatus {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()
	return m.holds[attemptID].status
}

func (m *memStore) recorded() []*transaction.Transaction {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()
	out := make([]*transaction.Transaction, len(m.records))
	copy(out, m.records)
	return out
}

// WithTransaction transaction.TransactionManager
func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.dataMu.RLock()
	balances := make(map[string]balanceRow, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	holds := make(map[string]holdRow, len(m.holds))
	for k, v := range m.holds {
		holds[k] = v
	}
	credits := len(m.credits)
	m.dataMu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.dataMu.Lock()
		m.balances = balances
		m.holds = holds
		m.credits = m.credits[:credits]
		m.dataMu.Unlock()
		return err
	}
	return nil
}

// Ensure balance.BalanceRepository
func (m *memStore) Ensure(_ context.Context, userID string) error {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = balanceRow{}
	}
	return nil
}

func (m *memStore) FindForUpdate(ctx context.Context, userID string) (*balance.Balance, error) {
	return m.FindByUserID(ctx, userID)
}

func (m *memStore) FindByUserID(_ context.Context, userID string) (*balance.Balance, error) {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()
	row, ok := m.balances[userID]
	if !ok {
		return nil, balance.ErrBalanceNotFound
	}
	return balance.NewBalance(userID, row.amount, row.held, row.version)
}

func (m *memStore) Save(_ context.Context, b *balance.Balance) error {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	m.balances[b.UserID()] = balanceRow{amount: b.Amount(), held: b.Held(), version: b.Version()}
	return nil
}

// memHolds reservation.HoldRepository
type memHolds struct{ *memStore }

func (h memHolds) Create(_ context.Context, hold *reservation.Hold) error {
	h.dataMu.Lock()
	defer h.dataMu.Unlock()
	if _, ok := h.holds[hold.AttemptID()]; ok {
		return reservation.ErrDuplicateAttempt
	}
	h.holds[hold.AttemptID()] = holdRow{
		attemptID: hold.AttemptID(),
		userID:    hold.UserID(),
		amount:    hold.Amount(),
		status:    hold.Status(),
		createdAt: hold.CreatedAt(),
		updatedAt: hold.UpdatedAt(),
	}
	return nil
}

func (h memHolds) FindByAttemptID(_ context.Context, attemptID string) (*reservation.Hold, error) {
	h.dataMu.RLock()
	defer h.dataMu.RUnlock()
	row, ok := h.holds[attemptID]
	if !ok {
		return nil, reservation.ErrHoldNotFound
	}
	return reservation.Restore(row.attemptID, row.userID, row.amount, row.status, row.createdAt, row.updatedAt), nil
}

func (h memHolds) UpdateStatus(_ context.Context, hold *reservation.Hold) error {
	h.dataMu.Lock()
	defer h.dataMu.Unlock()
	row, ok := h.holds[hold.AttemptID()]
	if !ok || row.status != reservation.HoldStatusPending {
		return reservation.ErrHoldAlreadyFinalized
	}
	row.status = hold.Status()
	row.updatedAt = hold.UpdatedAt()
	h.holds[hold.AttemptID()] = row
	return nil
}

func (h memHolds) FindStalePending(_ context.Context, before time.Time, limit int) ([]*reservation.Hold, error) {
	h.dataMu.RLock()
	defer h.dataMu.RUnlock()
	var out []*reservation.Hold
	for _, row := range h.holds {
		if row.status == reservation.HoldStatusPending && row.createdAt.Before(before) {
			out = append(out, reservation.Restore(row.attemptID, row.userID, row.amount, row.status, row.createdAt, row.updatedAt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memCredits balance.CreditRepository
type memCredits struct{ *memStore }

func (c memCredits) Save(_ context.Context, credit *balance.Credit) error {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.credits = append(c.credits, credit)
	return nil
}

// memRecords transaction.TransactionRepository
type memRecords struct{ *memStore }

func (r memRecords) Save(_ context.Context, t *transaction.Transaction) error {
	r.dataMu.Lock()
	defer r.dataMu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	for _, existing := range r.records {
		if existing.AttemptID() == t.AttemptID() {
			return transaction.ErrDuplicateAttemptID
		}
	}
	r.records = append(r.records, t)
	return nil
}

func (r memRecords) FindByTransactionID(_ context.Context, transactionID string) (*transaction.Transaction, error) {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	for _, t := range r.records {
		if t.TransactionID() == transactionID {
			return t, nil
		}
	}
	return nil, transaction.ErrTransactionNotFound
}

func (r memRecords) FindByAttemptID(_ context.Context, attemptID string) (*transaction.Transaction, error) {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	for _, t := range r.records {
		if t.AttemptID() == attemptID {
			return t, nil
		}
	}
	return nil, transaction.ErrTransactionNotFound
}

func (r memRecords) FindByUserID(_ context.Context, userID string, status *transaction.TransactionStatus, limit, offset int) ([]*transaction.Transaction, error) {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	var out []*transaction.Transaction
	for i := len(r.records) - 1; i >= 0; i-- {
		t := r.records[i]
		if t.UserID() != userID || (status != nil && t.Status() != *status) {
			continue
		}
		out = append(out, t)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memPackages catalog.PackageRepository
type memPackages map[string]*catalog.Package

func (p memPackages) FindByOperatorAndID(_ context.Context, operator, packageID string) (*catalog.Package, error) {
	pkg, ok := p[operator+"/"+packageID]
	if !ok {
		return nil, catalog.ErrPackageNotFound
	}
	return pkg, nil
}

func (p memPackages) FindByOperator(_ context.Context, operator string) ([]*catalog.Package, error) {
	var out []*catalog.Package
	for _, pkg := range p {
		if pkg.Operator() == operator {
			out = append(out, pkg)
		}
	}
	return out, nil
}

// fakePublisher 監査アラートの送信内容を保持
type fakePublisher struct {
	mu     sync.Mutex
	alerts []*transaction.Transaction
	err    error
}

func (p *fakePublisher) PublishAuditFailure(_ context.Context, t *transaction.Transaction, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, t)
	return p.err
}

func (p *fakePublisher) published() []*transaction.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*transaction.Transaction, len(p.alerts))
	copy(out, p.alerts)
	return out
}
