// Package telemetry holds the process-wide Prometheus collectors.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FoldDuration tracks fit plus predict time of one cross-validation fold
	FoldDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "goodsam_fold_duration_seconds",
		Help:    "Cross-validation fold duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// FoldFailures counts folds that returned an error
	FoldFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goodsam_fold_failures_total",
		Help: "Total cross-validation folds that failed",
	})

	// EstimateDuration tracks effect estimation latency by outcome
	EstimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goodsam_estimate_duration_seconds",
		Help:    "Effect estimation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"result"})

	// StageFailures counts effect estimation failures by stage
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goodsam_estimate_stage_failures_total",
		Help: "Total effect estimation failures by stage",
	}, []string{"stage"})

	// Requests counts API requests by route and status class
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goodsam_http_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})
)

// ObserveSince records the seconds elapsed since start on h
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
