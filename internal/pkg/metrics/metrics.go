package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentwallet_payments_total",
		Help: "Payments processed, by final status",
	}, []string{"status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentwallet_latency_seconds",
		Help:    "Request latency in seconds, by route and status class",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"endpoint", "class"})

	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentwallet_auth_failures_total",
		Help: "Requests rejected by the bearer token check",
	})

	LedgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentwallet_ledger_calls_total",
		Help: "Ledger RPC calls, by command and outcome",
	}, []string{"command", "status"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentwallet_risk_rejects_total",
		Help: "Payments rejected by spend limits",
	}, []string{"reason"})
)
