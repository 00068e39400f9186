package repository

import (
	"context"
	"fmt"
)

// DefaultBatchSize はバッチ削除1回あたりの最大件数。
const DefaultBatchSize = 500

// deleteInBatches はqueryを削除件数がbatchSize未満になるまで繰り返し実行する。
// queryの最後のプレースホルダはLIMIT（batchSize）とすること。
// 各DELETEは独立した文として実行され、長時間のロックを保持しない。
func deleteInBatches(ctx context.Context, db Executor, query string, batchSize int, args ...any) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	args = append(args, batchSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		result, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("バッチ削除の実行に失敗しました: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
		}
		total += n

		if n < int64(batchSize) {
			return total, nil
		}
	}
}
