package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psb_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "psb_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChargeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "psb_payment_charge_seconds",
			Help:    "Duration of payment provider charge calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psb_bookings_submitted_total",
			Help: "Booking submissions by outcome",
		},
		[]string{"outcome"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "psb_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	ReconciledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "psb_bookings_reconciled_total",
			Help: "Orphaned bookings cancelled by the reconciler",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "psb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
