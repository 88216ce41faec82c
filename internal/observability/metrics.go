package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the liquidation queue. A nil
// *Metrics is valid everywhere it is accepted and records nothing.
type Metrics struct {
	// --- Engine calls ---
	CallsApplied  *prometheus.CounterVec
	CallsRejected *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec

	// --- Bid lifecycle ---
	BidsSubmitted     *prometheus.CounterVec
	BidsActivated     *prometheus.CounterVec
	BidsRetracted     *prometheus.CounterVec
	CollateralClaimed *prometheus.CounterVec
	StableDeposited   *prometheus.CounterVec
	StableWithdrawn   *prometheus.CounterVec

	// --- Pools ---
	PoolConsumptions *prometheus.CounterVec
	PoolRollovers    *prometheus.CounterVec
	Liquidations     *prometheus.CounterVec

	// --- Commands ---
	CommandDuplicates *prometheus.CounterVec
	DedupLRUSize      prometheus.Gauge
	DedupLRUEvictions prometheus.Counter
	CommandsReceived  *prometheus.CounterVec
	PublishErrors     prometheus.Counter
	LedgerCorruptions prometheus.Counter
}

// NewMetrics creates and registers the metrics with the default registry.
// Call it once per process.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	latencyBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
	}

	return &Metrics{
		CallsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_calls_applied_total",
			Help: "Engine calls committed",
		}, []string{"op"}),

		CallsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_calls_rejected_total",
			Help: "Engine calls rolled back",
		}, []string{"op", "reason"}),

		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liqqueue_call_duration_seconds",
			Help:    "Time to run one engine call including its store transaction",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		BidsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_bids_submitted_total",
			Help: "Bids submitted, by whether they entered the pool immediately",
		}, []string{"collateral", "state"}),

		BidsActivated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_bids_activated_total",
			Help: "Pending bids activated after their waiting period",
		}, []string{"collateral"}),

		BidsRetracted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_bids_retracted_total",
			Help: "Bid retractions",
		}, []string{"collateral"}),

		CollateralClaimed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_collateral_claimed_total",
			Help: "Collateral paid out to bidders",
		}, []string{"collateral"}),

		StableDeposited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_stable_deposited_total",
			Help: "Stable amount deposited into bid pools",
		}, []string{"collateral"}),

		StableWithdrawn: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_stable_withdrawn_total",
			Help: "Stable amount withdrawn from bids",
		}, []string{"collateral"}),

		PoolConsumptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_pool_consumptions_total",
			Help: "Pool consumptions by premium slot",
		}, []string{"collateral", "slot"}),

		PoolRollovers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_pool_rollovers_total",
			Help: "Epoch and scale rollovers",
		}, []string{"collateral", "kind"}),

		Liquidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_liquidations_total",
			Help: "Liquidations executed against the queue",
		}, []string{"collateral"}),

		CommandDuplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_command_duplicates_total",
			Help: "Duplicate commands caught (lru/store)",
		}, []string{"command", "tier"}),

		DedupLRUSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liqqueue_dedup_lru_size",
			Help: "Command ids held in the dedup LRU",
		}),

		DedupLRUEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "liqqueue_dedup_lru_evictions_total",
			Help: "Command ids evicted from the dedup LRU",
		}),

		CommandsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liqqueue_commands_received_total",
			Help: "Commands received from NATS, by command type and outcome",
		}, []string{"command", "outcome"}),

		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "liqqueue_publish_errors_total",
			Help: "Queue events that failed to publish",
		}),

		LedgerCorruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "liqqueue_ledger_corruptions_total",
			Help: "Commands parked because the ledger holds an undecodable key; alert on any increase",
		}),
	}
}
