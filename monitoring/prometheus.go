package monitoring

import (
	"net/http"
	"time"

	"github.com/mezonai/powchain/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StoreOp string

var (
	StoreOpOpen    StoreOp = "open"
	StoreOpCreate  StoreOp = "create"
	StoreOpAppend  StoreOp = "append"
	StoreOpGet     StoreOp = "get"
	StoreOpVerify  StoreOp = "verify"
	StoreOpIterate StoreOp = "iterate"
)

type MiningOutcome string

var (
	MiningSealed    MiningOutcome = "sealed"
	MiningExhausted MiningOutcome = "exhausted"
	MiningCanceled  MiningOutcome = "canceled"
)

type chainPromMetrics struct {
	upUnixSeconds  prometheus.Gauge
	blocksMined    *prometheus.CounterVec
	hashAttempts   prometheus.Counter
	miningDuration prometheus.Histogram
	chainHeight    prometheus.Gauge
	blockSizeBytes prometheus.Histogram
	storeErrors    *prometheus.CounterVec
	panicCount     prometheus.Counter
}

func newChainPromMetrics() *chainPromMetrics {
	return &chainPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "powchain_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the process start",
			},
		),
		blocksMined: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powchain_blocks_mined_total",
				Help: "The total number of mining runs by outcome",
			},
			[]string{"outcome"},
		),
		hashAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powchain_hash_attempts_total",
				Help: "The total number of nonces tried",
			},
		),
		miningDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powchain_mining_duration_seconds",
				Help:    "Wall time spent searching for a nonce",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		chainHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "powchain_chain_height",
				Help: "Height of the current tip",
			},
		),
		blockSizeBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "powchain_block_record_size_bytes",
				Help: "The serialized block record size in bytes",
			},
		),
		storeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powchain_store_errors_total",
				Help: "The total number of failed store operations",
			},
			[]string{"op"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powchain_panic_total",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var chainMetrics = newChainPromMetrics()

func InitMetrics() {
	chainMetrics.upUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

// NewServer builds an HTTP server exposing /metrics on addr. The caller runs
// and shuts it down.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	RegisterMetrics(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func RecordMining(outcome MiningOutcome, attempts uint64, duration time.Duration) {
	chainMetrics.blocksMined.With(prometheus.Labels{
		"outcome": string(outcome),
	}).Inc()
	chainMetrics.hashAttempts.Add(float64(attempts))
	chainMetrics.miningDuration.Observe(duration.Seconds())
}

func SetChainHeight(height uint64) {
	chainMetrics.chainHeight.Set(float64(height))
}

func RecordBlockSizeBytes(sizeBytes int) {
	chainMetrics.blockSizeBytes.Observe(float64(sizeBytes))
}

func IncreasePanicCount() {
	chainMetrics.panicCount.Inc()
}

func RecordStoreError(op StoreOp) {
	chainMetrics.storeErrors.With(prometheus.Labels{
		"op": string(op),
	}).Inc()
}
