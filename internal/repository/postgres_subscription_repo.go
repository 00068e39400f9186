package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

// listPageSize はListAllが1回のクエリで取得する件数。
const listPageSize = 500

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db        *sql.DB
	batchSize int
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
// batchSizeが0以下の場合はDefaultBatchSizeを使用する。
func NewPostgresSubscriptionRepo(db *sql.DB, batchSize int) *PostgresSubscriptionRepo {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PostgresSubscriptionRepo{db: db, batchSize: batchSize}
}

const subscriptionColumns = `key, train_uid, service_date, error_count, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	sub := &model.Subscription{}
	if err := row.Scan(&sub.Key, &sub.TrainUID, &sub.ServiceDate, &sub.ErrorCount, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.ServiceDate = sub.ServiceDate.UTC()
	return sub, nil
}

// Upsert は購読を冪等に作成する。既存の場合はerror_countを0に戻す。
func (r *PostgresSubscriptionRepo) Upsert(ctx context.Context, trainUID string, serviceDate time.Time) (*model.Subscription, error) {
	key := model.CompositeKey(trainUID, serviceDate)
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO subscriptions (key, train_uid, service_date, error_count, created_at, updated_at)
		 VALUES ($1, $2, $3::date, 0, NOW(), NOW())
		 ON CONFLICT (key) DO UPDATE SET error_count = 0, updated_at = NOW()
		 RETURNING `+subscriptionColumns,
		key, trainUID, serviceDate.Format(model.ISODateLayout),
	)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, &model.StoreError{Op: "subscriptions.upsert", Err: err}
	}
	return sub, nil
}

// FindByKey は複合キーで購読を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByKey(ctx context.Context, key string) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE key = $1`,
		key,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StoreError{Op: "subscriptions.find", Err: err}
	}
	return sub, nil
}

// ListAll は全購読をキー順に遅延列挙する。
// キーセットページングで取得し、各ページのrowsはyield前にクローズする。
func (r *PostgresSubscriptionRepo) ListAll(ctx context.Context) iter.Seq2[*model.Subscription, error] {
	return func(yield func(*model.Subscription, error) bool) {
		after := ""
		for {
			page, err := r.listPage(ctx, after, listPageSize)
			if err != nil {
				yield(nil, &model.StoreError{Op: "subscriptions.list", Err: err})
				return
			}
			for _, sub := range page {
				if !yield(sub, nil) {
					return
				}
			}
			if len(page) < listPageSize {
				return
			}
			after = page[len(page)-1].Key
		}
	}
}

func (r *PostgresSubscriptionRepo) listPage(ctx context.Context, after string, limit int) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE key > $1 ORDER BY key ASC LIMIT $2`,
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	subs := make([]*model.Subscription, 0, limit)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("購読行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// IncrementError はerror_countを行ロック付きの読み取り・更新で1増やす。
// 購読が既に削除されている場合は (0, false, nil) を返す。
func (r *PostgresSubscriptionRepo) IncrementError(ctx context.Context, key string) (int, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, &model.StoreError{Op: "subscriptions.increment_error", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT error_count FROM subscriptions WHERE key = $1 FOR UPDATE`,
		key,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &model.StoreError{Op: "subscriptions.increment_error", Err: err}
	}

	count++
	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET error_count = $2, updated_at = NOW() WHERE key = $1`,
		key, count,
	); err != nil {
		return 0, false, &model.StoreError{Op: "subscriptions.increment_error", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, &model.StoreError{Op: "subscriptions.increment_error", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	return count, true, nil
}

// ResetErrors はerror_countを0に戻す。購読が存在しない場合は何もしない。
func (r *PostgresSubscriptionRepo) ResetErrors(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET error_count = 0, updated_at = NOW()
		 WHERE key = $1 AND error_count <> 0`,
		key,
	)
	if err != nil {
		return &model.StoreError{Op: "subscriptions.reset_errors", Err: err}
	}
	return nil
}

// DeleteServiceDateBefore は運行日がcutoffより前の購読をバッチ削除する。
func (r *PostgresSubscriptionRepo) DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := deleteInBatches(ctx, r.db,
		`DELETE FROM subscriptions WHERE key IN (
		     SELECT key FROM subscriptions WHERE service_date < $1::date LIMIT $2
		 )`,
		r.batchSize, cutoff.Format(model.ISODateLayout),
	)
	if err != nil {
		return n, &model.StoreError{Op: "subscriptions.delete_by_age", Err: err}
	}
	return n, nil
}

// DeleteErrorCountAbove はerror_countがceilingを超えた購読をバッチ削除する。
func (r *PostgresSubscriptionRepo) DeleteErrorCountAbove(ctx context.Context, ceiling int) (int64, error) {
	n, err := deleteInBatches(ctx, r.db,
		`DELETE FROM subscriptions WHERE key IN (
		     SELECT key FROM subscriptions WHERE error_count > $1 LIMIT $2
		 )`,
		r.batchSize, ceiling,
	)
	if err != nil {
		return n, &model.StoreError{Op: "subscriptions.delete_by_error_count", Err: err}
	}
	return n, nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
