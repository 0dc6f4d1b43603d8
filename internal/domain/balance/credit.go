package balance

import "time"

// Credit 管理者による残高加算の監査レコード
type Credit struct {
	creditID      string
	userID        string
	amount        int64
	balanceBefore int64
	balanceAfter  int64
	reason        string
	requester     string
	createdAt     time.Time
}

// NewCredit 新しいCreditを作成
func NewCredit(creditID, userID string, amount, balanceBefore, balanceAfter int64, reason, requester string) *Credit {
	return &Credit{
		creditID:      creditID,
		userID:        userID,
		amount:        amount,
		balanceBefore: balanceBefore,
		balanceAfter:  balanceAfter,
		reason:        reason,
		requester:     requester,
		createdAt:     time.Now(),
	}
}

func (c *Credit) CreditID() string { return c.creditID }
func (c *Credit) UserID() string { return c.userID }
func (c *Credit) Amount() int64 { return c.amount }
func (c *Credit) BalanceBefore() int64 { return c.balanceBefore }
func (c *Credit) BalanceAfter() int64 { return c.balanceAfter }
func (c *Credit) Reason() string { return c.reason }
func (c *Credit) Requester() string { return c.requester }
func (c *Credit) CreatedAt() time.Time { return c.createdAt }
