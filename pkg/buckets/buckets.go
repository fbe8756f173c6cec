// Package buckets implements histogram allocation against
// one of three candidate densities (Normal, Uniform, Random), observed
// count filling, and the chi-squared goodness-of-fit test, plus a
// per-distribution free-list pool so repeated prototype attempts reuse
// the same bucket count's allocation.
package buckets

import (
	"math"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/chisquare"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/sampletree"
)

// Distribution is one of the three candidate densities a Buckets can be
// built against.
type Distribution int

const (
	Normal Distribution = iota
	Uniform
	Random
)

const (
	tableSize     = 1024
	normalMean    = 512.0
	normalStdDev  = tableSize / 6.0
	minBuckets    = 5
	maxBuckets    = 39
	minVariance   = 4e-6
)

// Buckets is one histogram: a lookup table partitioning the discrete
// coordinate space [0,1024) into NumBuckets cells of approximately
// equal probability mass under Distribution, plus the expected counts
// implied by SampleCount and the chi-squared threshold implied by
// Confidence.
type Buckets struct {
	Distribution Distribution
	SampleCount  int
	Confidence   float64
	Threshold    float64
	NumBuckets   int

	Observed []int
	Expected []float64

	lookup [tableSize]int
}

// bucketCountTable drives the piecewise-linear interpolation below:
// fewer samples get coarser (fewer) buckets.
var bucketCountTable = []struct {
	samples float64
	buckets float64
}{
	{25, 5}, {200, 16}, {400, 20}, {600, 24}, {800, 27}, {1000, 30}, {1500, 35}, {2000, 39},
}

func bucketCountForSamples(n int) int {
	x := float64(n)
	first, last := bucketCountTable[0], bucketCountTable[len(bucketCountTable)-1]
	if x <= first.samples {
		return int(first.buckets)
	}
	if x >= last.samples {
		return int(last.buckets)
	}
	for i := 0; i < len(bucketCountTable)-1; i++ {
		a, b := bucketCountTable[i], bucketCountTable[i+1]
		if x >= a.samples && x <= b.samples {
			frac := (x - a.samples) / (b.samples - a.samples)
			v := a.buckets + frac*(b.buckets-a.buckets)
			return int(math.Round(v))
		}
	}
	return maxBuckets
}

// degreesOfFreedom computes the per-distribution degrees of freedom,
// rounded up to the next even number.
func degreesOfFreedom(dist Distribution, numBuckets int) int {
	var dof int
	switch dist {
	case Random:
		dof = numBuckets - 1
	default: // Normal, Uniform
		dof = numBuckets - 3
	}
	if dof < 2 {
		dof = 2
	}
	if dof%2 != 0 {
		dof++
	}
	return dof
}

func density(dist Distribution, t int) float64 {
	switch dist {
	case Normal:
		variance := normalStdDev * normalStdDev
		magnitude := 6.0 / (math.Sqrt(2*math.Pi) * tableSize)
		d := float64(t) - normalMean
		return magnitude * math.Exp(-(d*d)/(2*variance))
	default: // Uniform, Random: flat density across [0,1024)
		return 1.0 / tableSize
	}
}

// buildLookup partitions [0,1024) into numBuckets contiguous cells of
// approximately equal probability mass under dist's density, returning
// the per-coordinate lookup table and each bucket's raw (unnormalized)
// probability mass.
func buildLookup(dist Distribution, numBuckets int) ([tableSize]int, []float64) {
	var table [tableSize]int
	mass := make([]float64, numBuckets)

	total := 0.0
	d := make([]float64, tableSize)
	for t := 0; t < tableSize; t++ {
		d[t] = density(dist, t)
		total += d[t]
	}

	target := total / float64(numBuckets)
	cum := 0.0
	for t := 0; t < tableSize; t++ {
		idx := int(cum / target)
		if idx >= numBuckets {
			idx = numBuckets - 1
		}
		table[t] = idx
		mass[idx] += d[t]
		cum += d[t]
	}
	return table, mass
}

// Make constructs a fresh Buckets for dist, sized for count samples at
// the given confidence, using solver to evaluate the chi-squared
// threshold.
func Make(dist Distribution, count int, confidence float64, solver *chisquare.Solver) *Buckets {
	numBuckets := bucketCountForSamples(count)
	dof := degreesOfFreedom(dist, numBuckets)
	threshold := solver.ChiSquared(dof, confidence)

	lookup, mass := buildLookup(dist, numBuckets)
	total := 0.0
	for _, m := range mass {
		total += m
	}

	expected := make([]float64, numBuckets)
	for i, m := range mass {
		if total > 0 {
			expected[i] = (m / total) * float64(count)
		}
	}

	return &Buckets{
		Distribution: dist,
		SampleCount:  count,
		Confidence:   confidence,
		Threshold:    threshold,
		NumBuckets:   numBuckets,
		Observed:     make([]int, numBuckets),
		Expected:     expected,
		lookup:       lookup,
	}
}

// Pool is a per-distribution free list of previously built Buckets,
// reused across calls to avoid rebuilding the lookup table and
// chi-squared threshold when the bucket count is unchanged. It is a
// field of the owning Clusterer, never process-global state.
type Pool struct {
	solver *chisquare.Solver
	free   map[Distribution][]*Buckets

	onHit  func()
	onMiss func()
}

// NewPool returns an empty pool backed by solver.
func NewPool(solver *chisquare.Solver) *Pool {
	return &Pool{solver: solver, free: make(map[Distribution][]*Buckets)}
}

// SetHooks registers callbacks invoked from Get when it reuses a pooled
// Buckets (onHit) or builds a fresh one (onMiss). Either may be nil.
func (p *Pool) SetHooks(onHit, onMiss func()) {
	p.onHit = onHit
	p.onMiss = onMiss
}

// Get returns a Buckets for dist/count/confidence, reusing a pooled
// entry with a matching bucket count if one exists.
func (p *Pool) Get(dist Distribution, count int, confidence float64) *Buckets {
	numBuckets := bucketCountForSamples(count)
	list := p.free[dist]
	for i, b := range list {
		if b.NumBuckets != numBuckets {
			continue
		}
		p.free[dist] = append(list[:i], list[i+1:]...)

		if b.SampleCount != count && b.SampleCount > 0 {
			scale := float64(count) / float64(b.SampleCount)
			for j := range b.Expected {
				b.Expected[j] *= scale
			}
		}
		b.SampleCount = count

		if b.Confidence != confidence {
			dof := degreesOfFreedom(dist, numBuckets)
			b.Threshold = p.solver.ChiSquared(dof, confidence)
			b.Confidence = confidence
		}

		for j := range b.Observed {
			b.Observed[j] = 0
		}
		if p.onHit != nil {
			p.onHit()
		}
		return b
	}
	if p.onMiss != nil {
		p.onMiss()
	}
	return Make(dist, count, confidence, p.solver)
}

// Free returns b to the pool for reuse.
func (p *Pool) Free(b *Buckets) {
	p.free[b.Distribution] = append(p.free[b.Distribution], b)
}

// Fill zeroes the observed counts, then classifies every leaf sample
// under c along dimension dim
// into a bucket, either via the zero-stddev "pseudo-analysis" or via
// the normalized discrete coordinate for the target distribution.
func (b *Buckets) Fill(c *sampletree.Cluster, dim int, desc paramspace.ParamDesc, mean, stddev float32) {
	for i := range b.Observed {
		b.Observed[i] = 0
	}

	roundRobin := 0
	sampletree.WalkLeaves(c, func(leaf *sampletree.Cluster) {
		x := leaf.Mean[dim]

		if stddev == 0 {
			// The round-robin index advances on every leaf visited here,
			// not just on ties with the mean. Preserved as-is rather than
			// "corrected" to only advance on ties.
			switch {
			case x > mean:
				b.Observed[b.NumBuckets-1]++
			case x < mean:
				b.Observed[0]++
			default:
				b.Observed[roundRobin%b.NumBuckets]++
			}
			roundRobin++
			return
		}

		if desc.Circular {
			x = mean + paramspace.WrapDeviation(desc, x-mean)
		}

		var t float64
		if b.Distribution == Normal {
			t = (float64(x-mean)/float64(stddev))*normalStdDev + normalMean
		} else {
			t = (float64(x-mean)/(2*float64(stddev)))*tableSize + tableSize/2
		}
		if t < 0 {
			t = 0
		}
		if t > tableSize-1 {
			t = tableSize - 1
		}
		b.Observed[b.lookup[int(math.Floor(t))]]++
	})
}

// GoodnessOfFit computes the chi-squared statistic for the currently
// observed counts and reports whether it falls within Threshold.
func (b *Buckets) GoodnessOfFit() bool {
	var sum float64
	for i, obs := range b.Observed {
		exp := b.Expected[i]
		if exp <= 0 {
			continue
		}
		diff := float64(obs) - exp
		sum += (diff * diff) / exp
	}
	return sum <= b.Threshold
}
