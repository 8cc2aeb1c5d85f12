package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/epoch-prover/metrics"
)

// Metrics counts requests and observes their latency. Requests are labelled
// by method and status class so per-job status URLs don't add series.
func Metrics(reg *metrics.ComponentRegistry) func(http.Handler) http.Handler {
	requests := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_total",
		Help: "HTTP requests served, by method and status class",
	}, []string{"method", "class"})
	latency := reg.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: metrics.DurationBuckets,
	}, []string{"method"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)
			next.ServeHTTP(rw, r)

			requests.WithLabelValues(r.Method, statusClass(rw.status)).Inc()
			latency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
