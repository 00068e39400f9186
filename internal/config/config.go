// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration
	SweepBatchSize int

	// Queue
	AMQPURL            string
	AMQPExchange       string
	RefreshConcurrency int

	// Upstream (Realtime Trains)
	RTTBaseURL   string
	RTTUsername  string
	RTTPassword  string
	RTTTimeout   time.Duration
	RTTRateLimit float64
	RTTBurst     int

	// Retention
	RetentionDays int
	ErrorCeiling  int

	// Scheduler (cron spec)
	PollSchedule          string
	HourlyCleanupSchedule string
	DailyCleanupSchedule  string

	// Rate Limit
	HTTPRateLimit int

	// Server
	ServerPort  string
	MetricsPort string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗しました: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AMQPURL = os.Getenv("AMQP_URL")
	if cfg.AMQPURL == "" {
		missing = append(missing, "AMQP_URL")
	}

	cfg.RTTUsername = os.Getenv("RTT_USERNAME")
	if cfg.RTTUsername == "" {
		missing = append(missing, "RTT_USERNAME")
	}

	cfg.RTTPassword = os.Getenv("RTT_PASSWORD")
	if cfg.RTTPassword == "" {
		missing = append(missing, "RTT_PASSWORD")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 10)
	cfg.DBConnLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.SweepBatchSize = getEnvInt("SWEEP_BATCH_SIZE", 500)
	cfg.AMQPExchange = getEnvString("AMQP_EXCHANGE", "railwatch")
	cfg.RefreshConcurrency = getEnvInt("REFRESH_CONCURRENCY", 8)
	cfg.RTTBaseURL = getEnvString("RTT_BASE_URL", "https://api.rtt.io/api/v1")
	cfg.RTTTimeout = getEnvDuration("RTT_TIMEOUT", 10*time.Second)
	cfg.RTTRateLimit = getEnvFloat("RTT_RATE_LIMIT", 5)
	cfg.RTTBurst = getEnvInt("RTT_BURST", 10)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 1)
	cfg.ErrorCeiling = getEnvInt("ERROR_CEILING", 20)
	cfg.PollSchedule = getEnvString("POLL_SCHEDULE", "@every 1m")
	cfg.HourlyCleanupSchedule = getEnvString("HOURLY_CLEANUP_SCHEDULE", "@hourly")
	cfg.DailyCleanupSchedule = getEnvString("DAILY_CLEANUP_SCHEDULE", "@daily")
	cfg.HTTPRateLimit = getEnvInt("HTTP_RATE_LIMIT", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("RETENTION_DAYS must not be negative: %d", cfg.RetentionDays)
	}
	if cfg.RefreshConcurrency < 1 {
		cfg.RefreshConcurrency = 1
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
