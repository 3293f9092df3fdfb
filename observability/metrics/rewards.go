package metrics

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
)

// RewardsMetrics tracks the reward pool and the flows feeding and draining it.
// It consumes committed events, so reverted calls never move a gauge.
type RewardsMetrics struct {
	pool         prometheus.Gauge
	liabilities  prometheus.Gauge
	allocations  *prometheus.CounterVec
	allocated    *prometheus.CounterVec
	claims       prometheus.Counter
	claimed      prometheus.Counter
	resets       *prometheus.CounterVec
	purchases    *prometheus.CounterVec
	tierUpgrades *prometheus.CounterVec
	reverts      *prometheus.CounterVec
}

var (
	rewardsOnce     sync.Once
	rewardsRegistry *RewardsMetrics
)

// Rewards returns the process-wide rewards metrics registry.
func Rewards() *RewardsMetrics {
	rewardsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			pool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "pool",
				Help:      "Unallocated reward pool after the latest committed pool change.",
			}),
			liabilities: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "liabilities",
				Help:      "Allocated but unclaimed rewards.",
			}),
			allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "allocations_total",
				Help:      "Count of reward credits by source.",
			}, []string{"source"}),
			allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "allocated_amount_total",
				Help:      "Sum of credited reward amounts by source, in base units.",
			}, []string{"source"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "claims_total",
				Help:      "Count of successful reward claims.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "claimed_amount_total",
				Help:      "Sum of claimed reward amounts, in base units.",
			}),
			resets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "rewards",
				Name:      "resets_total",
				Help:      "Count of administrative account resets by outcome.",
			}, []string{"outcome"}),
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "cashback",
				Name:      "purchases_total",
				Help:      "Count of processed purchases by merchant tier.",
			}, []string{"tier"}),
			tierUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "merchants",
				Name:      "tier_upgrades_total",
				Help:      "Count of volume driven tier upgrades by resulting tier.",
			}, []string{"tier"}),
			reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "elr",
				Subsystem: "host",
				Name:      "reverted_calls_total",
				Help:      "Count of reverted calls by operation and error code.",
			}, []string{"op", "code"}),
		}
		prometheus.MustRegister(
			rewardsRegistry.pool,
			rewardsRegistry.liabilities,
			rewardsRegistry.allocations,
			rewardsRegistry.allocated,
			rewardsRegistry.claims,
			rewardsRegistry.claimed,
			rewardsRegistry.resets,
			rewardsRegistry.purchases,
			rewardsRegistry.tierUpgrades,
			rewardsRegistry.reverts,
		)
	})
	return rewardsRegistry
}

// Emit implements events.Emitter.
func (m *RewardsMetrics) Emit(e events.Event) {
	if m == nil || e == nil {
		return
	}
	switch evt := e.(type) {
	case events.RewardPoolFunded:
		m.pool.Set(bigToFloat(evt.Pool))
	case events.RewardAllocated:
		source := label(evt.Source)
		m.allocations.WithLabelValues(source).Inc()
		m.allocated.WithLabelValues(source).Add(bigToFloat(evt.Amount))
		m.pool.Set(bigToFloat(evt.Pool))
	case events.RewardClaimed:
		m.claims.Inc()
		m.claimed.Add(bigToFloat(evt.Amount))
	case events.RewardUserReset:
		outcome := "forfeited"
		if evt.Reclaimed {
			outcome = "reclaimed"
		}
		m.resets.WithLabelValues(outcome).Inc()
	case events.CashbackProcessed:
		m.purchases.WithLabelValues(label(evt.TierName)).Inc()
	case events.MerchantTierUpgraded:
		m.tierUpgrades.WithLabelValues(label(evt.TierName)).Inc()
	}
}

// SetLiabilities publishes the ledger's outstanding obligations. Callers
// sample the ledger view after commits.
func (m *RewardsMetrics) SetLiabilities(amount *big.Int) {
	if m == nil {
		return
	}
	m.liabilities.Set(bigToFloat(amount))
}

// SetPool publishes the pool balance read from the ledger view.
func (m *RewardsMetrics) SetPool(amount *big.Int) {
	if m == nil {
		return
	}
	m.pool.Set(bigToFloat(amount))
}

// ObserveRevert counts a reverted call under the supplied error code.
func (m *RewardsMetrics) ObserveRevert(op, code string) {
	if m == nil {
		return
	}
	m.reverts.WithLabelValues(label(op), label(code)).Inc()
}

// Observer adapts the registry to host.Observer. classify maps an error to
// the stable code used as the label value.
func (m *RewardsMetrics) Observer(classify func(error) string) host.Observer {
	return callObserver{metrics: m, classify: classify}
}

type callObserver struct {
	metrics  *RewardsMetrics
	classify func(error) string
}

func (o callObserver) ObserveCall(op string, err error) {
	if err == nil {
		return
	}
	code := "unknown"
	if o.classify != nil {
		code = o.classify(err)
	}
	o.metrics.ObserveRevert(op, code)
}

func label(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
