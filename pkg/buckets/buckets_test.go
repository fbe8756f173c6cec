package buckets

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/chisquare"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/sampletree"
)

func TestBucketCountForSamplesInterpolates(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{10, 5},
		{25, 5},
		{200, 16},
		{2000, 39},
		{5000, 39},
	}
	for _, c := range cases {
		if got := bucketCountForSamples(c.n); got != c.want {
			t.Errorf("bucketCountForSamples(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestDegreesOfFreedomRoundsUpToEven(t *testing.T) {
	if got := degreesOfFreedom(Normal, 16); got%2 != 0 {
		t.Errorf("degreesOfFreedom(Normal, 16) = %d, want even", got)
	}
	if got := degreesOfFreedom(Random, 5); got < 2 {
		t.Errorf("degreesOfFreedom(Random, 5) = %d, want >= 2", got)
	}
}

func TestMakeExpectedCountsSumToSampleCount(t *testing.T) {
	solver := chisquare.NewSolver()
	b := Make(Normal, 400, 0.05, solver)

	var total float64
	for _, e := range b.Expected {
		total += e
	}
	if total < 399 || total > 401 {
		t.Errorf("sum of expected counts = %v, want ~400", total)
	}
}

func TestPoolGetThenFreeResetsObserved(t *testing.T) {
	solver := chisquare.NewSolver()
	pool := NewPool(solver)

	b := pool.Get(Normal, 400, 0.05)
	for i := range b.Observed {
		b.Observed[i] = 7
	}
	pool.Free(b)

	again := pool.Get(Normal, 400, 0.05)
	for i, v := range again.Observed {
		if v != 0 {
			t.Errorf("Observed[%d] = %d after Get/Free round trip, want 0", i, v)
		}
	}
	if again.NumBuckets != b.NumBuckets {
		t.Errorf("NumBuckets changed across pool round trip: %d vs %d", again.NumBuckets, b.NumBuckets)
	}
}

func TestPoolGetRescalesExpectedOnCountChange(t *testing.T) {
	solver := chisquare.NewSolver()
	pool := NewPool(solver)

	// 10 and 20 samples both map to 5 buckets, so the pooled entry is reused.
	b := pool.Get(Normal, 10, 0.05)
	origExpected := append([]float64(nil), b.Expected...)
	pool.Free(b)

	again := pool.Get(Normal, 20, 0.05)
	if again.SampleCount != 20 {
		t.Fatalf("SampleCount = %d, want 20", again.SampleCount)
	}
	for i, e := range again.Expected {
		want := origExpected[i] * 2
		if diff := e - want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("Expected[%d] = %v, want ~%v after doubling sample count", i, e, want)
		}
	}
}

func TestFillZeroStddevRoundRobin(t *testing.T) {
	solver := chisquare.NewSolver()
	b := Make(Normal, 25, 0.05, solver)
	desc := paramspace.New(0, 10, false, false)

	// Every leaf sample exactly at the mean: all go round-robin.
	root := buildCluster([][]float32{{5}, {5}, {5}, {5}})
	b.Fill(root, 0, desc, 5, 0)

	total := 0
	for _, c := range b.Observed {
		total += c
	}
	if total != 4 {
		t.Fatalf("total observed = %d, want 4", total)
	}
}

func TestFillZeroStddevRoundRobinAdvancesOnEveryLeaf(t *testing.T) {
	solver := chisquare.NewSolver()
	b := Make(Normal, 25, 0.05, solver)
	desc := paramspace.New(0, 10, false, false)

	// 2 below/above mean, 3 at-mean samples interleaved. The round-robin
	// index must advance once per leaf visited, including the
	// below/above-mean ones, not just on ties with the mean.
	root := buildCluster([][]float32{{3}, {5}, {7}, {5}, {5}})
	b.Fill(root, 0, desc, 5, 0)

	want := []int{1, 1, 0, 1, 2}
	if b.NumBuckets != len(want) {
		t.Fatalf("NumBuckets = %d, want %d", b.NumBuckets, len(want))
	}
	for i, w := range want {
		if b.Observed[i] != w {
			t.Errorf("Observed[%d] = %d, want %d (got %v)", i, b.Observed[i], w, b.Observed)
		}
	}
}

func TestFillZeroStddevExtremesGoToEnds(t *testing.T) {
	solver := chisquare.NewSolver()
	b := Make(Normal, 25, 0.05, solver)
	desc := paramspace.New(0, 10, false, false)

	root := buildCluster([][]float32{{1}, {9}})
	b.Fill(root, 0, desc, 5, 0)

	if b.Observed[0] == 0 {
		t.Error("sample below mean did not land in first bucket")
	}
	if b.Observed[b.NumBuckets-1] == 0 {
		t.Error("sample above mean did not land in last bucket")
	}
}

func TestPoolGetInvokesHitAndMissHooks(t *testing.T) {
	solver := chisquare.NewSolver()
	pool := NewPool(solver)

	var hits, misses int
	pool.SetHooks(func() { hits++ }, func() { misses++ })

	b := pool.Get(Normal, 400, 0.05)
	if misses != 1 || hits != 0 {
		t.Fatalf("after first Get: hits=%d misses=%d, want hits=0 misses=1", hits, misses)
	}

	pool.Free(b)
	pool.Get(Normal, 400, 0.05)
	if misses != 1 || hits != 1 {
		t.Errorf("after pooled Get: hits=%d misses=%d, want hits=1 misses=1", hits, misses)
	}
}

func TestGoodnessOfFitPassesOnExactMatch(t *testing.T) {
	solver := chisquare.NewSolver()
	b := Make(Normal, 100, 0.05, solver)
	copy(b.Observed, intsFromFloats(b.Expected))

	if !b.GoodnessOfFit() {
		t.Error("GoodnessOfFit() = false when observed matches expected exactly")
	}
}

func buildCluster(points [][]float32) *sampletree.Cluster {
	descs := []paramspace.ParamDesc{paramspace.New(0, 10, false, false)}
	var c *sampletree.Cluster
	for i, p := range points {
		s := sampletree.NewSample(p, i)
		if c == nil {
			c = s
			continue
		}
		c = sampletree.Merge(descs, c, s)
	}
	return c
}

func intsFromFloats(f []float64) []int {
	out := make([]int, len(f))
	for i, v := range f {
		out[i] = int(v + 0.5)
	}
	return out
}
