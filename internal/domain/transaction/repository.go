package transaction

import (
	"context"
)

// TransactionRepository 精算記録リポジトリインターフェース（追記のみ）
type TransactionRepository interface {
	// Save 記録を追加（試行IDが重複する場合はErrDuplicateAttemptID）
	Save(ctx context.Context, transaction *Transaction) error

	// FindByTransactionID トランザクションIDで記録を取得
	FindByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)

	// FindByAttemptID 試行IDで記録を取得
	FindByAttemptID(ctx context.Context, attemptID string) (*Transaction, error)

	// FindByUserID ユーザーIDで記録一覧を取得（新しい順、ページネーション対応）
	// status が nil の場合は全ステータスを対象にする
	FindByUserID(ctx context.Context, userID string, status *TransactionStatus, limit, offset int) ([]*Transaction, error)
}
