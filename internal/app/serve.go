package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/railwatch/internal/config"
	"github.com/hitoshi/railwatch/internal/handler"
	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/middleware"
	"github.com/hitoshi/railwatch/internal/playlist"
	"github.com/hitoshi/railwatch/internal/queue"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/rtt"
	"github.com/hitoshi/railwatch/internal/station"
	"github.com/hitoshi/railwatch/internal/subscription"
	"github.com/hitoshi/railwatch/internal/timetable"
)

// runServe はAPIサーバーモードで起動する。
// DB接続とキュー接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. キュー（即時リフレッシュ要求の発行用）
	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, l)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// 3. リポジトリと上流クライアントの初期化
	subRepo := repository.NewPostgresSubscriptionRepo(db, cfg.SweepBatchSize)
	scheduleRepo := repository.NewPostgresScheduleRepo(db, cfg.SweepBatchSize)
	assetRepo := repository.NewPostgresAssetRepo(db)
	rttClient := newRTTClient(cfg, l)

	// 4. メトリクスとドメインサービスの初期化
	registry := newRegistry()
	collector := metrics.NewCollector(registry)
	subService := subscription.NewService(subRepo, publisher, collector, l)
	timetableService := timetable.NewService(rttClient, l)
	playlistService := playlist.NewService(scheduleRepo, assetRepo)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.HTTPRateLimit), l)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:       l,
		RateLimiter:  rateLimiter,
		Stations:     station.List,
		Timetable:    timetableService,
		Subscription: subService,
		Playlist:     playlistService,
		DB:           db,
		Metrics:      metrics.Handler(registry),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RTTTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveHTTP(ctx, server, l)
}

// newRTTClient は設定から上流時刻表APIクライアントを生成する。
func newRTTClient(cfg *config.Config, l *slog.Logger) *rtt.Client {
	return rtt.NewClient(&http.Client{Timeout: cfg.RTTTimeout}, rtt.Config{
		BaseURL:   cfg.RTTBaseURL,
		Username:  cfg.RTTUsername,
		Password:  cfg.RTTPassword,
		RateLimit: cfg.RTTRateLimit,
		Burst:     cfg.RTTBurst,
	}, l)
}
