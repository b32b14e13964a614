package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results reported on LookupsTotal.
const (
	resultHit       = "hit"
	resultMiss      = "miss"
	resultMismatch  = "mismatch"
	resultCancelled = "cancelled"
)

var (
	// LookupsTotal counts RecordOrFetch calls.
	// Labels: activity, result (hit, miss, mismatch, cancelled)
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ticketd",
			Subsystem: "idempotency",
			Name:      "lookups_total",
			Help:      "Total idempotency store lookups by activity and result",
		},
		[]string{"activity", "result"},
	)

	// ComputeDuration tracks how long first-time computes take.
	ComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ticketd",
			Subsystem: "idempotency",
			Name:      "compute_duration_seconds",
			Help:      "Duration of effect computations on cache miss",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"activity"},
	)
)
