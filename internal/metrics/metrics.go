package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tokenization metrics
	tokenizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prefpack_tokenize_duration_seconds",
			Help:    "Per-example tokenization duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		},
		[]string{"mode"},
	)

	tokenizedPairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefpack_tokenized_pairs_total",
			Help: "Total number of tokenized pairs by status",
		},
		[]string{"status"}, // "success" / "error"
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prefpack_active_tokenize_workers",
			Help: "Number of active tokenization workers",
		},
	)

	// Packing metrics
	binsSealed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prefpack_bins_total",
			Help: "Total number of sealed bins",
		},
	)

	pairsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prefpack_pairs_dropped_total",
			Help: "Pairs dropped because their combined length exceeds the bin capacity",
		},
	)

	binUtilization = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prefpack_bin_utilization_ratio",
			Help:    "Bin sequence length as a fraction of max_packed_length",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)
)

// Collector provides convenience methods for recording metrics
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger}
}

// RecordTokenize records one tokenization attempt
func (c *Collector) RecordTokenize(mode string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	tokenizeDuration.WithLabelValues(mode).Observe(duration.Seconds())
	tokenizedPairs.WithLabelValues(status).Inc()
}

// SetActiveWorkers sets the number of live tokenization workers
func (c *Collector) SetActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}

// RecordBin records one sealed bin and its capacity utilization
func (c *Collector) RecordBin(seqLen, maxPackedLength int) {
	binsSealed.Inc()
	binUtilization.Observe(float64(seqLen) / float64(maxPackedLength))
}

// RecordDroppedPair counts an oversize pair excluded from packing
func (c *Collector) RecordDroppedPair() {
	pairsDropped.Inc()
}
