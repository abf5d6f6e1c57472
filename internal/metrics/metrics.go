// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitledger"

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	SplitsAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "splits_allocated_total",
		Help:      "Expenses whose shares were allocated, by split type.",
	}, []string{"split_type"})

	SplitsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "splits_rejected_total",
		Help:      "Allocation attempts rejected by validation, by reason.",
	}, []string{"reason"})

	RecurringMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recurring_materialized_total",
		Help:      "Expenses created from recurring templates.",
	})

	RecurringFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recurring_failures_total",
		Help:      "Recurring templates that failed to materialize.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events handed to the publisher, by type and result.",
	}, []string{"type", "result"})

	BalanceRowsCoerced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_rows_coerced_total",
		Help:      "Stored amounts that failed to parse and were counted as zero.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency labelled with the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Result labels an outcome as "ok" or "error".
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
