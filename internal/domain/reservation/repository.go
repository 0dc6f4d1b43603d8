package reservation

import (
	"context"
	"time"
)

// HoldRepository 確保リポジトリインターフェース
type HoldRepository interface {
	// Create 確保を作成（試行IDが重複する場合はErrDuplicateAttempt）
	Create(ctx context.Context, h *Hold) error

	// FindByAttemptID 試行IDで確保を取得
	FindByAttemptID(ctx context.Context, attemptID string) (*Hold, error)

	// UpdateStatus ステータスを更新（pendingからの遷移のみ）
	UpdateStatus(ctx context.Context, h *Hold) error

	// FindStalePending 指定時刻より前に作成された確保中レコードを取得
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]*Hold, error)
}
