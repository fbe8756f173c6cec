// Package obsmetrics exposes the Prometheus metrics a Clusterer
// updates while building the sample tree and extracting prototypes.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a Clusterer reports to.
type Metrics struct {
	SamplesInserted           prometheus.Counter
	MergesPerformed           prometheus.Counter
	HeapRepushes              prometheus.Counter
	StaleHeapEntriesDiscarded prometheus.Counter
	PrototypesEmitted         *prometheus.CounterVec // label: style
	GoFEvaluations            prometheus.Counter
	BucketPoolHits            prometheus.Counter
	BucketPoolMisses          prometheus.Counter
	TreeBuildDuration         prometheus.Histogram
	ProtoExtractDuration      prometheus.Histogram
}

// New creates and registers a fresh Metrics against the default
// Prometheus registry. Construct at most one per process; tests that
// need isolation should register against a private prometheus.Registry
// instead.
func New() *Metrics {
	return &Metrics{
		SamplesInserted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_samples_inserted_total",
			Help: "Total number of samples added to a Clusterer before clustering began",
		}),
		MergesPerformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_merges_total",
			Help: "Total number of nearest-neighbor merges performed while building the sample tree",
		}),
		HeapRepushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_heap_repushes_total",
			Help: "Total number of neighbor pairs re-pushed onto the merge heap after a merge or a stale-neighbor recomputation",
		}),
		StaleHeapEntriesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_heap_stale_discarded_total",
			Help: "Total number of stale heap entries discarded without triggering a merge",
		}),
		PrototypesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocrcluster_prototypes_emitted_total",
			Help: "Total number of prototypes extracted, by style",
		}, []string{"style"}),
		GoFEvaluations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_goodness_of_fit_evaluations_total",
			Help: "Total number of chi-squared goodness-of-fit evaluations performed",
		}),
		BucketPoolHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_bucket_pool_hits_total",
			Help: "Total number of bucket pool Get calls satisfied by a pooled entry",
		}),
		BucketPoolMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocrcluster_bucket_pool_misses_total",
			Help: "Total number of bucket pool Get calls that built a fresh Buckets",
		}),
		TreeBuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocrcluster_tree_build_duration_seconds",
			Help:    "Time spent building the sample tree via nearest-neighbor merges",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}),
		ProtoExtractDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocrcluster_prototype_extract_duration_seconds",
			Help:    "Time spent walking the sample tree to extract prototypes",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}),
	}
}

// RecordPrototype increments PrototypesEmitted for style.
func (m *Metrics) RecordPrototype(style string) {
	m.PrototypesEmitted.WithLabelValues(style).Inc()
}

// RecordTreeBuild observes a completed tree-build duration.
func (m *Metrics) RecordTreeBuild(d time.Duration) {
	m.TreeBuildDuration.Observe(d.Seconds())
}

// RecordProtoExtract observes a completed prototype-extraction duration.
func (m *Metrics) RecordProtoExtract(d time.Duration) {
	m.ProtoExtractDuration.Observe(d.Seconds())
}
