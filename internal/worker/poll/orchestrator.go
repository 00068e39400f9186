// Package poll はポーリングオーケストレータを提供する。
// ファンアウト（全購読に対するリフレッシュ要求の発行）と、
// 1件ごとのリフレッシュ処理（上流取得・キャッシュ更新・エラーカウント）を含む。
package poll

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/queue"
)

// SubscriptionLister は全購読の遅延列挙インターフェース。
type SubscriptionLister interface {
	ListAll(ctx context.Context) iter.Seq2[*model.Subscription, error]
}

// Publisher はトピックへのメッセージ発行インターフェース。
type Publisher interface {
	Publish(ctx context.Context, topic string, body any) error
}

// FanOutResult はファンアウト1回の集計。
type FanOutResult struct {
	Total  int // 列挙した購読数
	Queued int // 発行に成功した数
	Failed int // 発行に失敗した数
}

// Orchestrator はpollトリガーを受けて全購読のリフレッシュ要求を発行する。
// 自身は時刻表を取得せず、状態も持たない。
type Orchestrator struct {
	subs      SubscriptionLister
	publisher Publisher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewOrchestrator はOrchestratorを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewOrchestrator(subs SubscriptionLister, publisher Publisher, collector metrics.MetricsCollector, logger *slog.Logger) *Orchestrator {
	if collector == nil {
		collector = metrics.Noop()
	}
	return &Orchestrator{
		subs:      subs,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

// FanOut は全購読を列挙し、1件ごとにリフレッシュ要求を発行する。
// 個別の発行失敗はログに記録して次の購読へ進む。
// 列挙自体が失敗した場合は、それまでの集計とともにエラーを返す。
func (o *Orchestrator) FanOut(ctx context.Context) (FanOutResult, error) {
	start := time.Now()
	var result FanOutResult

	for sub, err := range o.subs.ListAll(ctx) {
		if err != nil {
			o.logger.Error("購読一覧の取得に失敗しました",
				slog.Int("queued_count", result.Queued),
				slog.String("error", err.Error()),
			)
			return result, err
		}

		result.Total++
		if err := o.publisher.Publish(ctx, queue.TopicScheduleUpdate, model.NewRefreshRequest(sub)); err != nil {
			result.Failed++
			o.metrics.RecordEnqueueFailure()
			o.logger.Error("リフレッシュ要求の発行に失敗しました",
				slog.String("key", sub.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Queued++
		o.metrics.RecordRefreshQueued()
	}

	o.logger.Info("リフレッシュ要求のファンアウトが完了しました",
		slog.Int("subscription_count", result.Total),
		slog.Int("queued_count", result.Queued),
		slog.Int("failed_count", result.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return result, nil
}

// HandleTrigger はpollトピックのメッセージを処理する。
// 本文はログ用途のみで、デコードできなくてもファンアウトは実行する。
func (o *Orchestrator) HandleTrigger(ctx context.Context, body []byte) error {
	var trigger model.TriggerMessage
	if err := json.Unmarshal(body, &trigger); err != nil {
		o.logger.Warn("トリガーメッセージのデコードに失敗しました",
			slog.String("error", err.Error()),
		)
	} else {
		o.logger.Debug("pollトリガーを受信しました",
			slog.Time("fired_at", trigger.FiredAt),
		)
	}

	_, err := o.FanOut(ctx)
	return err
}
