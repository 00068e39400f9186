// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// リフレッシュ結果のラベル値。
const (
	RefreshSuccess      = "success"
	RefreshUpstreamFail = "upstream_error"
	RefreshInvalid      = "invalid_message"
	RefreshStoreFail    = "store_error"
)

// 購読時の即時リフレッシュ要求のラベル値。
const (
	SubscribeQueued      = "queued"
	SubscribeEnqueueFail = "enqueue_failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordRefreshQueued()
	RecordEnqueueFailure()
	RecordRefresh(result string)
	RecordUpstreamLatency(duration time.Duration)
	RecordSwept(sweep, collection string, count int64)
	RecordSubscribe(refreshQueued bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	refreshQueued   prometheus.Counter
	enqueueFailures prometheus.Counter
	refreshTotal    *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	sweptRecords    *prometheus.CounterVec
	subscribes      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_refresh_requests_queued_total",
			Help: "ファンアウトで発行したリフレッシュ要求の合計数",
		}),
		enqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_refresh_enqueue_failures_total",
			Help: "リフレッシュ要求の発行失敗の合計数",
		}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railwatch_refresh_total",
			Help: "結果別のリフレッシュ処理数",
		}, []string{"result"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railwatch_upstream_latency_seconds",
			Help:    "上流時刻表APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sweptRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railwatch_swept_records_total",
			Help: "クリーンアップで削除したレコード数",
		}, []string{"sweep", "collection"}),
		subscribes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railwatch_subscribe_total",
			Help: "即時リフレッシュ要求の発行結果別の購読登録数",
		}, []string{"refresh"}),
	}

	reg.MustRegister(
		c.refreshQueued,
		c.enqueueFailures,
		c.refreshTotal,
		c.upstreamLatency,
		c.sweptRecords,
		c.subscribes,
	)

	return c
}

// RecordRefreshQueued はリフレッシュ要求の発行を記録する。
func (c *Collector) RecordRefreshQueued() {
	c.refreshQueued.Inc()
}

// RecordEnqueueFailure はリフレッシュ要求の発行失敗を記録する。
func (c *Collector) RecordEnqueueFailure() {
	c.enqueueFailures.Inc()
}

// RecordRefresh はリフレッシュ処理の結果を記録する。
func (c *Collector) RecordRefresh(result string) {
	c.refreshTotal.WithLabelValues(result).Inc()
}

// RecordUpstreamLatency は上流APIのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordSwept はクリーンアップの削除件数を記録する。
func (c *Collector) RecordSwept(sweep, collection string, count int64) {
	c.sweptRecords.WithLabelValues(sweep, collection).Add(float64(count))
}

// RecordSubscribe は購読登録と即時リフレッシュ要求の発行結果を記録する。
func (c *Collector) RecordSubscribe(refreshQueued bool) {
	result := SubscribeQueued
	if !refreshQueued {
		result = SubscribeEnqueueFail
	}
	c.subscribes.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// workerプロセスのメトリクス専用ポートで使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// noop はメトリクスを記録しないMetricsCollector。
type noop struct{}

// Noop は何も記録しないMetricsCollectorを返す。
func Noop() MetricsCollector { return noop{} }

func (noop) RecordRefreshQueued() {}
func (noop) RecordEnqueueFailure() {}
func (noop) RecordRefresh(string) {}
func (noop) RecordUpstreamLatency(time.Duration) {}
func (noop) RecordSwept(string, string, int64) {}
func (noop) RecordSubscribe(bool) {}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
