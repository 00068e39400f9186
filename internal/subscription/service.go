// Package subscription は列車の購読（監視登録）のドメインロジックを提供する。
package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/queue"
	"github.com/hitoshi/railwatch/internal/validation"
)

// Upserter は購読の冪等な作成インターフェース。
type Upserter interface {
	Upsert(ctx context.Context, trainUID string, serviceDate time.Time) (*model.Subscription, error)
}

// Publisher はトピックへのメッセージ発行インターフェース。
type Publisher interface {
	Publish(ctx context.Context, topic string, body any) error
}

// Result は購読操作の結果。
type Result struct {
	Subscription *model.Subscription
	// RefreshQueued は即時リフレッシュ要求の発行に成功したかを示す。
	// 失敗しても購読は次のpollサイクルで更新される。
	RefreshQueued bool
}

// Service は購読管理のサービス層。
type Service struct {
	subRepo   Upserter
	publisher Publisher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(subRepo Upserter, publisher Publisher, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if collector == nil {
		collector = metrics.Noop()
	}
	return &Service{
		subRepo:   subRepo,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe は列車・運行日の購読を登録し、即時リフレッシュ要求を発行する。
// すべてのパラメータを検証してから永続化するため、不正な要求は副作用を持たない。
func (s *Service) Subscribe(ctx context.Context, params validation.SubscribeParams) (*Result, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	serviceDate, err := validation.ResolveDate("trainDate", params.TrainDate, s.now())
	if err != nil {
		return nil, err
	}

	sub, err := s.subRepo.Upsert(ctx, params.TrainUID, serviceDate)
	if err != nil {
		return nil, err
	}

	result := &Result{Subscription: sub}
	if err := s.publisher.Publish(ctx, queue.TopicScheduleUpdate, model.NewRefreshRequest(sub)); err != nil {
		s.logger.Warn("即時リフレッシュ要求の発行に失敗しました",
			slog.String("key", sub.Key),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordSubscribe(false)
		return result, nil
	}
	result.RefreshQueued = true
	s.metrics.RecordSubscribe(true)

	s.logger.Info("購読を登録しました",
		slog.String("key", sub.Key),
		slog.String("train_uid", sub.TrainUID),
	)
	return result, nil
}
