package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/railwatch/internal/config"
	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/queue"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/scheduler"
	"github.com/hitoshi/railwatch/internal/worker/cleanup"
	"github.com/hitoshi/railwatch/internal/worker/poll"
)

// runWorker はワーカーモードで起動する。
// 4つのトピック（poll, scheduleUpdate, hourlyCleanup, dailyCleanup）を購読し、
// ポーリングとクリーンアップを実行する。メトリクスはMETRICS_PORTで公開する。
// ctxがキャンセルされると処理中のメッセージの完了を待って停止する。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. キュー接続
	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, l)
	if err != nil {
		return err
	}
	defer publisher.Close()

	consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, l)
	if err != nil {
		return err
	}
	defer consumer.Close()

	// 3. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 4. リポジトリとジョブの初期化
	subRepo := repository.NewPostgresSubscriptionRepo(db, cfg.SweepBatchSize)
	scheduleRepo := repository.NewPostgresScheduleRepo(db, cfg.SweepBatchSize)

	orchestrator := poll.NewOrchestrator(subRepo, publisher, collector, l)
	refresher := poll.NewRefresher(newRTTClient(cfg, l), subRepo, scheduleRepo, collector, l)

	sweeper := cleanup.NewSweeper(subRepo, scheduleRepo, collector, l)
	sweeper.RetentionDays = cfg.RetentionDays
	sweeper.ErrorCeiling = cfg.ErrorCeiling

	// 5. トピックの購読
	subscriptions := []struct {
		topic       string
		concurrency int
		handler     queue.Handler
	}{
		{queue.TopicPoll, 1, orchestrator.HandleTrigger},
		{queue.TopicScheduleUpdate, cfg.RefreshConcurrency, refresher.HandleMessage},
		{queue.TopicHourlyCleanup, 1, sweeper.HandleErrorTrigger},
		{queue.TopicDailyCleanup, 1, sweeper.HandleAgeTrigger},
	}
	for _, s := range subscriptions {
		if err := consumer.Subscribe(ctx, s.topic, s.concurrency, s.handler); err != nil {
			return err
		}
	}

	// 6. メトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	metricsDone := make(chan error, 1)
	go func() { metricsDone <- serveHTTP(metricsCtx, metricsServer, l) }()

	l.Info("worker starting",
		slog.Int("refresh_concurrency", cfg.RefreshConcurrency),
		slog.Int("retention_days", cfg.RetentionDays),
		slog.Int("error_ceiling", cfg.ErrorCeiling),
	)

	// 7. ctxのキャンセルまたはブローカー切断までブロック
	runErr := consumer.Run(ctx)

	stopMetrics()
	if err := <-metricsDone; err != nil {
		l.Error("metrics server error", slog.String("error", err.Error()))
	}

	if runErr != nil {
		return runErr
	}
	l.Info("worker stopped gracefully")
	return nil
}

// runScheduler はスケジューラモードで起動する。
// cronでpoll, hourlyCleanup, dailyCleanupのトリガーメッセージを発行する。
func runScheduler(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, l)
	if err != nil {
		return err
	}
	defer publisher.Close()

	s := scheduler.New(publisher, schedulerJobs(cfg), l)

	if err := s.Start(ctx); err != nil {
		return err
	}
	l.Info("scheduler stopped gracefully")
	return nil
}

// schedulerJobs は設定からcronジョブの一覧を組み立てる。
func schedulerJobs(cfg *config.Config) []scheduler.Job {
	return []scheduler.Job{
		{Topic: queue.TopicPoll, Spec: cfg.PollSchedule},
		{Topic: queue.TopicHourlyCleanup, Spec: cfg.HourlyCleanupSchedule},
		{Topic: queue.TopicDailyCleanup, Spec: cfg.DailyCleanupSchedule},
	}
}
