// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"iter"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

// SubscriptionRepository は監視対象列車（購読）の永続化インターフェース。
type SubscriptionRepository interface {
	// Upsert は購読を冪等に作成する。既存の場合はerror_countを0に戻す。
	Upsert(ctx context.Context, trainUID string, serviceDate time.Time) (*model.Subscription, error)

	// FindByKey は複合キーで購読を取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Subscription, error)

	// ListAll は全購読をキー順に遅延列挙する。
	// ページ単位で取得するため、呼び出し側のI/O中にカーソルやトランザクションを保持しない。
	ListAll(ctx context.Context) iter.Seq2[*model.Subscription, error]

	// IncrementError はerror_countを1件のトランザクション内でインクリメントする。
	// 購読が存在しない場合は (0, false, nil) を返す。
	IncrementError(ctx context.Context, key string) (int, bool, error)

	// ResetErrors はerror_countを0に戻す。購読が存在しない場合は何もしない。
	ResetErrors(ctx context.Context, key string) error

	// DeleteServiceDateBefore は運行日がcutoffより前の購読をバッチ削除し、削除件数を返す。
	DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteErrorCountAbove はerror_countがceilingを超えた購読をバッチ削除し、削除件数を返す。
	DeleteErrorCountAbove(ctx context.Context, ceiling int) (int64, error)
}

// ScheduleRepository は購読ごとの最新時刻表キャッシュの永続化インターフェース。
type ScheduleRepository interface {
	// Put は時刻表を上書き保存する。
	Put(ctx context.Context, schedule *model.CachedSchedule) error

	// FindByKey は複合キーでキャッシュを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.CachedSchedule, error)

	// DeleteServiceDateBefore は運行日がcutoffより前のキャッシュをバッチ削除し、削除件数を返す。
	DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AssetRepository は駅ごとのプレイリスト用アセットの永続化インターフェース。
type AssetRepository interface {
	// ListByCRS は指定駅コードのアセットを駅コードごとにposition順で返す。
	ListByCRS(ctx context.Context, crsCodes []string) (map[string][]model.Asset, error)

	// ReplaceForCRS は駅のアセットを並び順どおりに置き換える。
	ReplaceForCRS(ctx context.Context, crs string, assets []model.Asset) error
}

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
