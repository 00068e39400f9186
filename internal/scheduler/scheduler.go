// Package scheduler はタイマー基盤を提供する。
// cron式ごとにトリガーメッセージ（poll / hourlyCleanup / dailyCleanup）をキューへ発行する。
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/railwatch/internal/model"
)

// publishTimeout はトリガー1件の発行に許す時間。
const publishTimeout = 10 * time.Second

// Publisher はトピックへのメッセージ発行インターフェース。
type Publisher interface {
	Publish(ctx context.Context, topic string, body any) error
}

// Job はトピックと発火スケジュール（cron式または @every 記法）の組。
type Job struct {
	Topic string
	Spec  string
}

// Scheduler はcronでトリガーメッセージを発行する。
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	jobs      []Job
	logger    *slog.Logger
	now       func() time.Time
}

// New はSchedulerを生成する。cronのジョブ内で発生したpanicは回収してログに記録する。
func New(publisher Publisher, jobs []Job, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:      c,
		publisher: publisher,
		jobs:      jobs,
		logger:    logger,
		now:       time.Now,
	}
}

// Fire はtopicのトリガーメッセージを1件発行する。
func (s *Scheduler) Fire(ctx context.Context, topic string) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := model.TriggerMessage{Topic: topic, FiredAt: s.now().UTC()}
	if err := s.publisher.Publish(ctx, topic, msg); err != nil {
		s.logger.Error("トリガーの発行に失敗しました",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("トリガーを発行しました",
		slog.String("topic", topic),
		slog.Time("fired_at", msg.FiredAt),
	)
	return nil
}

// register は全ジョブをcronに登録する。不正なスケジュールがあればエラーを返す。
func (s *Scheduler) register(ctx context.Context) error {
	for _, job := range s.jobs {
		topic := job.Topic
		if _, err := s.cron.AddFunc(job.Spec, func() {
			s.Fire(ctx, topic)
		}); err != nil {
			return fmt.Errorf("ジョブ %s のスケジュール %q が不正です: %w", topic, job.Spec, err)
		}
		s.logger.Info("ジョブを登録しました",
			slog.String("topic", topic),
			slog.String("schedule", job.Spec),
		)
	}
	return nil
}

// Start はジョブを登録してcronを起動し、ctxがキャンセルされるまでブロックする。
// 停止時は実行中のジョブの完了を待つ。
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.register(ctx); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("スケジューラを開始しました",
		slog.Int("job_count", len(s.jobs)),
	)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("スケジューラを停止しました")
	return nil
}
