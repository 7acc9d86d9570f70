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
// 監査レコーダー、認証サービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	AuditRecorded(action string)
	AuditDropped(reason string)
	ObserveLogin(result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRateLimited(limitType string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	auditRecorded  *prometheus.CounterVec
	auditDropped   *prometheus.CounterVec
	loginAttempts  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	rateLimited    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		auditRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sghss_audit_recorded_total",
			Help: "永続化された監査ログの合計数",
		}, []string{"action"}),
		auditDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sghss_audit_dropped_total",
			Help: "破棄された監査ログの合計数（理由別）",
		}, []string{"reason"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sghss_login_attempts_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sghss_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sghss_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sghss_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"limit_type"}),
	}

	reg.MustRegister(
		c.auditRecorded,
		c.auditDropped,
		c.loginAttempts,
		c.httpStatus,
		c.requestLatency,
		c.rateLimited,
	)

	return c
}

// AuditRecorded は監査ログの永続化を記録する。
func (c *Collector) AuditRecorded(action string) {
	c.auditRecorded.WithLabelValues(action).Inc()
}

// AuditDropped は監査ログの破棄を記録する。
func (c *Collector) AuditDropped(reason string) {
	c.auditDropped.WithLabelValues(reason).Inc()
}

// ObserveLogin はログイン試行の結果を記録する。
func (c *Collector) ObserveLogin(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
