// Package sampletree implements the binary cluster tree: leaves are
// Samples (single feature vectors tagged with a
// source-character id), internal nodes are Clusters formed by merging
// two children. Traversal helpers use an explicit stack rather than
// direct recursion because the tree's
// height can approach the number of inserted samples in the worst case.
package sampletree

import "github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"

// Cluster is a node in the cluster tree. A leaf (Left == Right == nil)
// is a Sample: CharID >= 0, Count == 1. An internal node has CharID ==
// -1 and Count == Left.Count + Right.Count.
type Cluster struct {
	Mean   []float32
	Count  int
	CharID int

	Left, Right *Cluster

	// Clustered is set once this node has been absorbed into a parent
	// merge; it is no longer present in the spatial index and no longer
	// eligible to be the "main" side of a heap pop.
	Clustered bool

	// HasPrototype marks that a Prototype currently refers to this
	// cluster.
	HasPrototype bool
}

// NewSample creates a leaf cluster for one inserted feature vector.
func NewSample(features []float32, charID int) *Cluster {
	mean := make([]float32, len(features))
	copy(mean, features)
	return &Cluster{Mean: mean, Count: 1, CharID: charID}
}

// IsLeaf reports whether c is an originally-inserted Sample.
func (c *Cluster) IsLeaf() bool {
	return c.Left == nil && c.Right == nil
}

// Merge combines two clusters into a new internal node, computing the
// sample-count-weighted mean , including circular-wrap
// correction for circular dimensions.
func Merge(descs []paramspace.ParamDesc, left, right *Cluster) *Cluster {
	n := left.Count + right.Count
	mean := make([]float32, len(descs))
	nl := float32(left.Count)
	nr := float32(right.Count)
	for i, d := range descs {
		lm, rm := left.Mean[i], right.Mean[i]
		var m float32
		switch {
		case !d.Circular:
			m = (nl*lm + nr*rm) / float32(n)
		case rm-lm > d.HalfRange:
			m = (nl*lm + nr*(rm-d.Range)) / float32(n)
		case lm-rm > d.HalfRange:
			m = (nl*(lm-d.Range) + nr*rm) / float32(n)
		default:
			m = (nl*lm + nr*rm) / float32(n)
		}
		if d.Circular && m < d.Min {
			m += d.Range
		}
		mean[i] = m
	}
	return &Cluster{
		Mean:   mean,
		Count:  n,
		CharID: -1,
		Left:   left,
		Right:  right,
	}
}

// SampleSearchState tracks an in-progress depth-first walk over the
// leaves of a cluster subtree.
type SampleSearchState struct {
	stack []*Cluster
}

// InitSampleSearch begins a leaf walk rooted at c.
func InitSampleSearch(c *Cluster) *SampleSearchState {
	s := &SampleSearchState{stack: make([]*Cluster, 0, 8)}
	if c != nil {
		s.stack = append(s.stack, c)
	}
	return s
}

// NextSample returns the next leaf Sample in the walk, or ok == false
// once the subtree is exhausted.
func NextSample(s *SampleSearchState) (*Cluster, bool) {
	for len(s.stack) > 0 {
		n := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		for !n.IsLeaf() {
			if n.Right != nil {
				s.stack = append(s.stack, n.Right)
			}
			n = n.Left
		}
		return n, true
	}
	return nil, false
}

// WalkLeaves visits every leaf Sample under c, in the same left-first
// order as NextSample, without requiring the caller to manage a search
// state. Used by stats.Compute and buckets.Buckets.Fill.
func WalkLeaves(c *Cluster, visit func(*Cluster)) {
	if c == nil {
		return
	}
	st := InitSampleSearch(c)
	for {
		leaf, ok := NextSample(st)
		if !ok {
			return
		}
		visit(leaf)
	}
}

// charState is the tri-state tracker used by MultipleCharSamples.
type charState int

const (
	charUnseen charState = iota
	charSeen
	charIllegal
)

// MultipleCharSamples walks every leaf sample under c, and reports
// true as soon as the running fraction of
// "illegal" (repeated-identity) samples exceeds maxIllegal.
func MultipleCharSamples(c *Cluster, numChar int, maxIllegal float32) bool {
	if numChar <= 0 {
		numChar = 1
	}
	state := make([]charState, numChar)
	illegalCount := 0
	charCount := c.Count

	st := InitSampleSearch(c)
	for {
		leaf, ok := NextSample(st)
		if !ok {
			return false
		}
		k := leaf.CharID
		if k < 0 || k >= numChar {
			continue
		}
		switch state[k] {
		case charUnseen:
			state[k] = charSeen
		case charSeen:
			state[k] = charIllegal
			illegalCount++
			charCount--
			if charCount <= 0 || float32(illegalCount)/float32(charCount) > maxIllegal {
				return true
			}
		case charIllegal:
			// subsequent repeats of an already-illegal id are not
			// recounted, matching the source's tri-state semantics.
		}
	}
}
