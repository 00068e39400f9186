package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

// PostgresScheduleRepo はPostgreSQLを使用した時刻表キャッシュリポジトリ。
// 時刻表本体はJSONBとして保存する。
type PostgresScheduleRepo struct {
	db        *sql.DB
	batchSize int
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB, batchSize int) *PostgresScheduleRepo {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PostgresScheduleRepo{db: db, batchSize: batchSize}
}

// Put は時刻表を上書き保存する。
func (r *PostgresScheduleRepo) Put(ctx context.Context, schedule *model.CachedSchedule) error {
	payload, err := json.Marshal(schedule.Schedule)
	if err != nil {
		return &model.StoreError{Op: "schedules.put", Err: fmt.Errorf("時刻表のエンコードに失敗しました: %w", err)}
	}

	fetchedAt := schedule.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO schedules (key, train_uid, service_date, payload, fetched_at)
		 VALUES ($1, $2, $3::date, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		schedule.Key, schedule.TrainUID, schedule.ServiceDate.Format(model.ISODateLayout), payload, fetchedAt,
	)
	if err != nil {
		return &model.StoreError{Op: "schedules.put", Err: err}
	}
	return nil
}

// FindByKey は複合キーでキャッシュを取得する。見つからない場合はnilを返す。
func (r *PostgresScheduleRepo) FindByKey(ctx context.Context, key string) (*model.CachedSchedule, error) {
	cached := &model.CachedSchedule{}
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT key, train_uid, service_date, payload, fetched_at FROM schedules WHERE key = $1`,
		key,
	).Scan(&cached.Key, &cached.TrainUID, &cached.ServiceDate, &payload, &cached.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StoreError{Op: "schedules.find", Err: err}
	}

	if err := json.Unmarshal(payload, &cached.Schedule); err != nil {
		return nil, &model.StoreError{Op: "schedules.find", Err: fmt.Errorf("時刻表のデコードに失敗しました: %w", err)}
	}
	cached.ServiceDate = cached.ServiceDate.UTC()
	return cached, nil
}

// DeleteServiceDateBefore は運行日がcutoffより前のキャッシュをバッチ削除する。
func (r *PostgresScheduleRepo) DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := deleteInBatches(ctx, r.db,
		`DELETE FROM schedules WHERE key IN (
		     SELECT key FROM schedules WHERE service_date < $1::date LIMIT $2
		 )`,
		r.batchSize, cutoff.Format(model.ISODateLayout),
	)
	if err != nil {
		return n, &model.StoreError{Op: "schedules.delete_by_age", Err: err}
	}
	return n, nil
}

// compile-time interface check
var _ ScheduleRepository = (*PostgresScheduleRepo)(nil)
