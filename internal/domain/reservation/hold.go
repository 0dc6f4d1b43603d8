package reservation

import (
	"time"
)

// HoldStatus 確保ステータス
type HoldStatus string

const (
	HoldStatusPending   HoldStatus = "pending"   // 確保中
	HoldStatusCommitted HoldStatus = "committed" // 引き落とし確定
	HoldStatusReleased  HoldStatus = "released"  // 解放
)

// String 文字列表現を返す
func (s HoldStatus) String() string {
	return string(s)
}

// Hold 精算試行ごとの残高確保
type Hold struct {
	attemptID string
	userID    string
	amount    int64
	status    HoldStatus
	createdAt time.Time
	updatedAt time.Time
}

// NewHold 新しいHoldを作成
func NewHold(attemptID, userID string, amount int64) *Hold {
	now := time.Now()
	return &Hold{
		attemptID: attemptID,
		userID:    userID,
		amount:    amount,
		status:    HoldStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// Restore 永続化済みの値からHoldを復元
func Restore(attemptID, userID string, amount int64, status HoldStatus, createdAt, updatedAt time.Time) *Hold {
	return &Hold{
		attemptID: attemptID,
		userID:    userID,
		amount:    amount,
		status:    status,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// AttemptID 試行IDを返す
func (h *Hold) AttemptID() string {
	return h.attemptID
}

// UserID ユーザーIDを返す
func (h *Hold) UserID() string {
	return h.userID
}

// Amount 確保額を返す
func (h *Hold) Amount() int64 {
	return h.amount
}

// Status ステータスを返す
func (h *Hold) Status() HoldStatus {
	return h.status
}

// CreatedAt 作成日時を返す
func (h *Hold) CreatedAt() time.Time {
	return h.createdAt
}

// UpdatedAt 更新日時を返す
func (h *Hold) UpdatedAt() time.Time {
	return h.updatedAt
}

// IsPending 確保中かどうかを返す
func (h *Hold) IsPending() bool {
	return h.status == HoldStatusPending
}

// Commit 引き落とし確定に遷移
func (h *Hold) Commit() error {
	return h.transition(HoldStatusCommitted)
}

// Release 解放に遷移
func (h *Hold) Release() error {
	return h.transition(HoldStatusReleased)
}

func (h *Hold) transition(to HoldStatus) error {
	if !h.IsPending() {
		return ErrHoldAlreadyFinalized
	}
	h.status = to
	h.updatedAt = time.Now()
	return nil
}
