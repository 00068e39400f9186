package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/validation"
)

// ScheduleFetcher は上流から1列車・1運行日の時刻表を取得するインターフェース。
type ScheduleFetcher interface {
	QueryService(ctx context.Context, trainUID string, date time.Time) (*model.ServiceSchedule, error)
}

// ErrorCounter は購読のエラーカウント操作インターフェース。
type ErrorCounter interface {
	IncrementError(ctx context.Context, key string) (int, bool, error)
	ResetErrors(ctx context.Context, key string) error
}

// ScheduleWriter は時刻表キャッシュへの書き込みインターフェース。
type ScheduleWriter interface {
	Put(ctx context.Context, schedule *model.CachedSchedule) error
}

// Refresher はscheduleUpdateメッセージ1件ごとのリフレッシュ処理を行う。
// 失敗時はerror_countを増やすのみで、購読の削除はクリーンアップに任せる。
type Refresher struct {
	fetcher   ScheduleFetcher
	counter   ErrorCounter
	schedules ScheduleWriter
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewRefresher はRefresherを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewRefresher(
	fetcher ScheduleFetcher,
	counter ErrorCounter,
	schedules ScheduleWriter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Refresher {
	if collector == nil {
		collector = metrics.Noop()
	}
	return &Refresher{
		fetcher:   fetcher,
		counter:   counter,
		schedules: schedules,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleMessage はscheduleUpdateトピックのメッセージ本文を処理する。
// JSONとしてデコードできないメッセージはキーを導出できないため破棄する。
func (r *Refresher) HandleMessage(ctx context.Context, body []byte) error {
	var req model.RefreshRequest
	if err := json.Unmarshal(body, &req); err != nil {
		r.metrics.RecordRefresh(metrics.RefreshInvalid)
		r.logger.Warn("リフレッシュ要求のデコードに失敗したため破棄しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("リフレッシュ要求のデコードに失敗しました: %w", err)
	}
	return r.Refresh(ctx, req)
}

// Refresh は1件のリフレッシュ要求を処理する。
// 成功時はキャッシュを上書きしてerror_countを0に戻す。
// 上流エラーまたは不正なフィールドの場合はerror_countを1増やす。
func (r *Refresher) Refresh(ctx context.Context, req model.RefreshRequest) error {
	serviceDate, err := model.ParseServiceDate(req.TrainDate)
	if err != nil {
		r.metrics.RecordRefresh(metrics.RefreshInvalid)
		r.logger.Warn("運行日を解析できないため要求を破棄しました",
			slog.String("train_uid", req.TrainUID),
			slog.String("train_date", req.TrainDate),
			slog.String("error", err.Error()),
		)
		return model.NewValidationError("trainDate", err.Error())
	}
	key := model.CompositeKey(req.TrainUID, serviceDate)

	if err := validation.TrainUID("trainUID", req.TrainUID); err != nil {
		return r.fail(ctx, key, err)
	}

	start := r.now()
	schedule, err := r.fetcher.QueryService(ctx, req.TrainUID, serviceDate)
	r.metrics.RecordUpstreamLatency(r.now().Sub(start))
	if err != nil {
		return r.fail(ctx, key, err)
	}

	cached := &model.CachedSchedule{
		Key:         key,
		TrainUID:    req.TrainUID,
		ServiceDate: serviceDate,
		Schedule:    *schedule,
		FetchedAt:   r.now(),
	}
	if err := r.schedules.Put(ctx, cached); err != nil {
		return r.fail(ctx, key, err)
	}

	if err := r.counter.ResetErrors(ctx, key); err != nil {
		r.logger.Warn("エラーカウントのリセットに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	r.metrics.RecordRefresh(metrics.RefreshSuccess)
	r.logger.Info("時刻表を更新しました",
		slog.String("key", key),
		slog.Int("stop_count", len(schedule.Stops)),
		slog.Float64("duration_ms", float64(r.now().Sub(start).Milliseconds())),
	)
	return nil
}

// fail は失敗を分類し、カウント対象であればerror_countを増やす。
// 購読が既に削除されている場合のインクリメントは何もしない。
func (r *Refresher) fail(ctx context.Context, key string, cause error) error {
	r.metrics.RecordRefresh(resultLabel(cause))

	if ClassifyFailure(cause) == OutcomeStoreFailure {
		r.logger.Error("時刻表キャッシュの保存に失敗しました",
			slog.String("key", key),
			slog.String("error", cause.Error()),
		)
		return cause
	}

	count, found, err := r.counter.IncrementError(ctx, key)
	if err != nil {
		r.logger.Error("エラーカウントの更新に失敗しました",
			slog.String("key", key),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("エラーカウントの更新に失敗しました: %w", err)
	}
	if !found {
		r.logger.Info("購読が存在しないためエラーカウントを更新しませんでした",
			slog.String("key", key),
			slog.String("error", cause.Error()),
		)
		return cause
	}

	attrs := []any{
		slog.String("key", key),
		slog.Int("error_count", count),
		slog.String("error", cause.Error()),
	}
	if kind, ok := model.UpstreamKind(cause); ok {
		attrs = append(attrs, slog.String("upstream_error", string(kind)))
	}
	r.logger.Warn("リフレッシュに失敗したためエラーカウントを増やしました", attrs...)
	return cause
}
