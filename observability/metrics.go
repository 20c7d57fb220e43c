package observability

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics records engine operation activity and pool solvency gauges.
type StakingMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	amounts    *prometheus.CounterVec
	reserved   *prometheus.GaugeVec
	custody    *prometheus.GaugeVec
}

var (
	stakingMetricsOnce sync.Once
	stakingRegistry    *StakingMetrics
)

// Metrics returns the lazily-initialised staking metrics registry.
func Metrics() *StakingMetrics {
	stakingMetricsOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "duostake",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total staking engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "duostake",
				Subsystem: "engine",
				Name:      "operation_seconds",
				Help:      "Staking engine operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "duostake",
				Subsystem: "engine",
				Name:      "amount_total",
				Help:      "Cumulative amounts moved by operation and asset leg, in base units.",
			}, []string{"operation", "asset"}),
			reserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "duostake",
				Subsystem: "pool",
				Name:      "reserved",
				Help:      "Currently reserved reward liability per asset leg, in base units.",
			}, []string{"asset"}),
			custody: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "duostake",
				Subsystem: "pool",
				Name:      "custody",
				Help:      "Custody balance per asset leg, in base units.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.latency,
			stakingRegistry.amounts,
			stakingRegistry.reserved,
			stakingRegistry.custody,
		)
	})
	return stakingRegistry
}

// ObserveOperation records one engine call with its outcome and duration.
func (m *StakingMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// AddAmount accumulates an amount moved by an operation. Values beyond float
// precision saturate rather than wrap; the counters are operational hints,
// the ledger itself is the source of truth.
func (m *StakingMetrics) AddAmount(operation, asset string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.amounts.WithLabelValues(operation, asset).Add(value)
}

// SetPoolGauges publishes the current solvency view for one asset leg.
func (m *StakingMetrics) SetPoolGauges(asset string, custody, reserved *big.Int) {
	if m == nil {
		return
	}
	if custody != nil {
		value, _ := new(big.Float).SetInt(custody).Float64()
		m.custody.WithLabelValues(asset).Set(value)
	}
	if reserved != nil {
		value, _ := new(big.Float).SetInt(reserved).Float64()
		m.reserved.WithLabelValues(asset).Set(value)
	}
}
