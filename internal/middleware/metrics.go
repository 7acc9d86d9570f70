package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver はHTTPレスポンスの観測に必要なインターフェース。
// metrics.Collectorが実装する。
type HTTPObserver interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// NewMetricsMiddleware はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
func NewMetricsMiddleware(observer HTTPObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			observer.RecordHTTPStatus(rec.statusCode)
			observer.RecordRequestLatency(time.Since(start))
		})
	}
}
