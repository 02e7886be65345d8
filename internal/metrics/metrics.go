// Package metrics provides Prometheus metrics for the auction engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Auction lifecycle metrics
	AuctionsCreated *prometheus.CounterVec
	Settlements     *prometheus.CounterVec
	SettlementTime  *prometheus.HistogramVec
	BidsPlaced      *prometheus.CounterVec
	BidAmount       *prometheus.HistogramVec

	// Gateway metrics
	GatewayCalls   *prometheus.CounterVec
	GatewayLatency *prometheus.HistogramVec
	EscrowFailures *prometheus.CounterVec

	// Rollback/reentrancy metrics
	Rollbacks prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "auctionengine"
	}

	m := &Metrics{
		AuctionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auctions_created_total",
				Help:      "Total number of auctions created, by kind",
			},
			[]string{"kind"},
		),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Total number of settlements, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		SettlementTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settlement_duration_seconds",
				Help:      "Wall-clock time from auction creation to settlement",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		BidsPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bids_placed_total",
				Help:      "Total number of accepted bids, by kind",
			},
			[]string{"kind"},
		),
		BidAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bid_amount",
				Help:      "Distribution of accepted bid amounts (1e18-scaled fungible units)",
				Buckets:   prometheus.ExponentialBuckets(1e15, 10, 10),
			},
			[]string{"kind"},
		),

		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Total AssetGateway calls, by op and outcome",
			},
			[]string{"op", "outcome"},
		),
		GatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_latency_seconds",
				Help:      "AssetGateway call latency in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
		EscrowFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escrow_failures_total",
				Help:      "Total escrow effect failures that triggered a rollback",
			},
			[]string{"kind"},
		),

		Rollbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total transitions rolled back after a failed escrow effect",
			},
		),
	}

	prometheus.MustRegister(
		m.AuctionsCreated,
		m.Settlements,
		m.SettlementTime,
		m.BidsPlaced,
		m.BidAmount,
		m.GatewayCalls,
		m.GatewayLatency,
		m.EscrowFailures,
		m.Rollbacks,
	)

	return m
}

// RecordCreated records an auction creation.
func (m *Metrics) RecordCreated(kind string) {
	m.AuctionsCreated.WithLabelValues(kind).Inc()
}

// RecordBid records an accepted bid.
func (m *Metrics) RecordBid(kind string, amount uint64) {
	m.BidsPlaced.WithLabelValues(kind).Inc()
	m.BidAmount.WithLabelValues(kind).Observe(float64(amount))
}

// RecordSettlement records a settlement outcome and the time since creation.
func (m *Metrics) RecordSettlement(kind, outcome string, since time.Duration) {
	m.Settlements.WithLabelValues(kind, outcome).Inc()
	m.SettlementTime.WithLabelValues(kind).Observe(since.Seconds())
}

// RecordGatewayCall records a gateway call outcome and latency.
func (m *Metrics) RecordGatewayCall(op string, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayCalls.WithLabelValues(op, outcome).Inc()
	m.GatewayLatency.WithLabelValues(op).Observe(latency.Seconds())
}

// RecordRollback records an escrow-triggered rollback for a given kind.
func (m *Metrics) RecordRollback(kind string) {
	m.EscrowFailures.WithLabelValues(kind).Inc()
	m.Rollbacks.Inc()
}
