package obsmetrics

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	// Created once and reused across subtests: promauto registers
	// against the default registry, and a second New() in this process
	// would panic on duplicate registration.
	m := New()

	t.Run("NewInitializesCollectors", func(t *testing.T) {
		if m.SamplesInserted == nil {
			t.Error("SamplesInserted not initialized")
		}
		if m.MergesPerformed == nil {
			t.Error("MergesPerformed not initialized")
		}
		if m.PrototypesEmitted == nil {
			t.Error("PrototypesEmitted not initialized")
		}
		if m.TreeBuildDuration == nil {
			t.Error("TreeBuildDuration not initialized")
		}
	})

	t.Run("RecordPrototype", func(t *testing.T) {
		m.RecordPrototype("spherical")
		m.RecordPrototype("mixed")
	})

	t.Run("RecordDurations", func(t *testing.T) {
		m.RecordTreeBuild(10 * time.Millisecond)
		m.RecordProtoExtract(5 * time.Millisecond)
	})

	t.Run("CountersIncrement", func(t *testing.T) {
		m.SamplesInserted.Inc()
		m.MergesPerformed.Inc()
		m.HeapRepushes.Inc()
		m.StaleHeapEntriesDiscarded.Inc()
		m.GoFEvaluations.Inc()
		m.BucketPoolHits.Inc()
		m.BucketPoolMisses.Inc()
	})
}
