// Package cleanup は購読と時刻表キャッシュの自動削除ジョブを提供する。
// 運行日が保持期間を過ぎたレコードを削除する経過日数スイープと、
// error_countが上限を超えた購読を削除するエラースイープの2種類を持つ。
// 両スイープは独立しており、どちらの順序で、あるいは同時に実行してもよい。
package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/model"
)

const (
	// DefaultRetentionDays は運行日からの保持日数のデフォルト値。
	DefaultRetentionDays = 1
	// DefaultErrorCeiling はerror_countの上限のデフォルト値。
	DefaultErrorCeiling = 20
)

// スイープ名とコレクション名（メトリクスのラベル値）。
const (
	sweepAge            = "age"
	sweepError          = "error"
	collectionSubs      = "subscriptions"
	collectionSchedules = "schedules"
)

// SubscriptionPurger は購読の削除インターフェース。
type SubscriptionPurger interface {
	DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteErrorCountAbove(ctx context.Context, ceiling int) (int64, error)
}

// SchedulePurger は時刻表キャッシュの削除インターフェース。
type SchedulePurger interface {
	DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper は保持期間・エラー上限に基づくクリーンアップジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type Sweeper struct {
	subs          SubscriptionPurger
	schedules     SchedulePurger
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 運行日からの保持日数（デフォルト: 1）
	ErrorCeiling  int // error_countの上限（デフォルト: 20）
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(subs SubscriptionPurger, schedules SchedulePurger, collector metrics.MetricsCollector, logger *slog.Logger) *Sweeper {
	if collector == nil {
		collector = metrics.Noop()
	}
	return &Sweeper{
		subs:          subs,
		schedules:     schedules,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
		ErrorCeiling:  DefaultErrorCeiling,
	}
}

// Cutoff は経過日数スイープの基準日を返す。運行日がこの日より前のレコードが削除対象となる。
func (s *Sweeper) Cutoff() time.Time {
	return model.Today(s.now()).AddDate(0, 0, -s.RetentionDays)
}

// AgeSweep は運行日が保持期間を過ぎた購読と時刻表キャッシュを削除する。
// 購読と時刻表は独立に削除し、一方の失敗は他方を妨げない。
func (s *Sweeper) AgeSweep(ctx context.Context) error {
	cutoff := s.Cutoff()

	subErr := s.run(ctx, sweepAge, collectionSubs, func(ctx context.Context) (int64, error) {
		return s.subs.DeleteServiceDateBefore(ctx, cutoff)
	}, slog.String("cutoff", cutoff.Format(model.ISODateLayout)))

	schedErr := s.run(ctx, sweepAge, collectionSchedules, func(ctx context.Context) (int64, error) {
		return s.schedules.DeleteServiceDateBefore(ctx, cutoff)
	}, slog.String("cutoff", cutoff.Format(model.ISODateLayout)))

	return errors.Join(subErr, schedErr)
}

// ErrorSweep はerror_countが上限を超えた購読を削除する。
// 対応する時刻表キャッシュは削除せず、経過日数スイープに任せる。
func (s *Sweeper) ErrorSweep(ctx context.Context) error {
	return s.run(ctx, sweepError, collectionSubs, func(ctx context.Context) (int64, error) {
		return s.subs.DeleteErrorCountAbove(ctx, s.ErrorCeiling)
	}, slog.Int("error_ceiling", s.ErrorCeiling))
}

func (s *Sweeper) run(ctx context.Context, sweep, collection string, del func(context.Context) (int64, error), attr slog.Attr) error {
	start := time.Now()

	deletedCount, err := del(ctx)
	if deletedCount > 0 {
		s.metrics.RecordSwept(sweep, collection, deletedCount)
	}
	if err != nil {
		s.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("sweep", sweep),
			slog.String("collection", collection),
			slog.Int64("deleted_count", deletedCount),
			attr,
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s の %s スイープに失敗: %w", collection, sweep, err)
	}

	s.logger.Info("クリーンアップジョブが完了しました",
		slog.String("sweep", sweep),
		slog.String("collection", collection),
		slog.Int64("deleted_count", deletedCount),
		attr,
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// HandleAgeTrigger はdailyCleanupトピックのメッセージを処理する。
func (s *Sweeper) HandleAgeTrigger(ctx context.Context, body []byte) error {
	s.logTrigger(body)
	return s.AgeSweep(ctx)
}

// HandleErrorTrigger はhourlyCleanupトピックのメッセージを処理する。
func (s *Sweeper) HandleErrorTrigger(ctx context.Context, body []byte) error {
	s.logTrigger(body)
	return s.ErrorSweep(ctx)
}

func (s *Sweeper) logTrigger(body []byte) {
	var trigger model.TriggerMessage
	if err := json.Unmarshal(body, &trigger); err != nil {
		s.logger.Warn("トリガーメッセージのデコードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("クリーンアップトリガーを受信しました",
		slog.String("topic", trigger.Topic),
		slog.Time("fired_at", trigger.FiredAt),
	)
}
