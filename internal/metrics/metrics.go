// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントとストアから利用する。
type MetricsCollector interface {
	RecordRequest(operation string, statusCode int, duration time.Duration)
	RecordNetworkError(operation string)
	RecordAutoLogout()
	RecordStoreTransition(store, kind, phase string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	networkErrors    *prometheus.CounterVec
	autoLogouts      prometheus.Counter
	storeTransitions *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tzkeeper_api_requests_total",
			Help: "操作とHTTPステータスコード別のAPIリクエスト数",
		}, []string{"operation", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tzkeeper_api_request_duration_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		networkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tzkeeper_api_network_errors_total",
			Help: "レスポンスを受信できなかったAPIリクエスト数",
		}, []string{"operation"}),
		autoLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tzkeeper_auto_logouts_total",
			Help: "401応答による自動ログアウトの合計数",
		}),
		storeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tzkeeper_store_transitions_total",
			Help: "ストアのステータス遷移数",
		}, []string{"store", "kind", "phase"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.networkErrors,
		c.autoLogouts,
		c.storeTransitions,
	)

	return c
}

// RecordRequest はレスポンスを受信したリクエストを記録する。
func (c *Collector) RecordRequest(operation string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.requestLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNetworkError はトランスポート障害を記録する。
func (c *Collector) RecordNetworkError(operation string) {
	c.networkErrors.WithLabelValues(operation).Inc()
}

// RecordAutoLogout は401応答による自動ログアウトを記録する。
func (c *Collector) RecordAutoLogout() {
	c.autoLogouts.Inc()
}

// RecordStoreTransition はストアのステータス遷移を記録する。
func (c *Collector) RecordStoreTransition(store, kind, phase string) {
	c.storeTransitions.WithLabelValues(store, kind, phase).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
