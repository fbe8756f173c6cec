// Package clusterer implements the clustering orchestrator: it owns a
// Clusterer's spatial index during bottom-up
// cluster-tree construction, then walks the resulting tree top-down to
// extract a list of statistical prototypes. It is the wiring point for
// every other package in this module (kdtree, clusterheap, sampletree,
// stats, buckets, chisquare, prototype).
package clusterer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/therealutkarshpriyadarshi/ocrcluster/internal/obslog"
	"github.com/therealutkarshpriyadarshi/ocrcluster/internal/obsmetrics"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/buckets"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/chisquare"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/clusterheap"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/config"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/kdtree"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/prototype"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/sampletree"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/stats"
)

// ErrAlreadyClustered is returned by AddSample once cluster-tree
// construction has begun.
var ErrAlreadyClustered = errors.New("ocrcluster: AddSample called after clustering has begun")

// Clusterer owns a parameter descriptor array, a spatial index (until
// tree construction completes), the cluster tree root, and the current
// prototype list.
type Clusterer struct {
	descs []paramspace.ParamDesc
	dim   int

	index *kdtree.Tree
	built bool
	root  *sampletree.Cluster

	totalSamples int
	numChar      int

	prototypes []*prototype.Prototype

	solver *chisquare.Solver
	pool   *buckets.Pool

	logger  *obslog.Logger
	metrics *obsmetrics.Metrics
}

// Option configures optional collaborators on a new Clusterer.
type Option func(*Clusterer)

// WithLogger attaches a structured logger.
func WithLogger(l *obslog.Logger) Option {
	return func(c *Clusterer) { c.logger = l }
}

// WithMetrics attaches a Prometheus metrics recorder.
func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(c *Clusterer) { c.metrics = m }
}

// NewClusterer builds an empty Clusterer over the given per-dimension
// descriptors.
func NewClusterer(descs []paramspace.ParamDesc, opts ...Option) *Clusterer {
	solver := chisquare.NewSolver()
	c := &Clusterer{
		descs:  descs,
		dim:    len(descs),
		index:  kdtree.New(len(descs), descs),
		solver: solver,
		pool:   buckets.NewPool(solver),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		c.pool.SetHooks(c.metrics.BucketPoolHits.Inc, c.metrics.BucketPoolMisses.Inc)
	}
	return c
}

// AddSample inserts one feature vector tagged with charID. It fails with ErrAlreadyClustered once ClusterSamples
// has begun building the tree.
func (c *Clusterer) AddSample(features []float32, charID int) (*sampletree.Cluster, error) {
	if c.built {
		return nil, ErrAlreadyClustered
	}
	if len(features) != c.dim {
		return nil, fmt.Errorf("ocrcluster: expected %d-dimensional feature vector, got %d", c.dim, len(features))
	}

	s := sampletree.NewSample(features, charID)
	c.index.Insert(s.Mean, s)
	c.totalSamples++
	if charID >= c.numChar {
		c.numChar = charID + 1
	}

	if c.metrics != nil {
		c.metrics.SamplesInserted.Inc()
	}
	if c.logger != nil {
		c.logger.Debug("sample added", map[string]interface{}{"char_id": charID})
	}
	return s, nil
}

// ClusterSamples builds the cluster tree on first call, then extracts a
// fresh prototype list under cfg on every call.
func (c *Clusterer) ClusterSamples(cfg config.ClusterConfig) ([]*prototype.Prototype, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !c.built {
		start := time.Now()
		if c.logger != nil {
			c.logger.Info("building cluster tree", map[string]interface{}{"samples": c.totalSamples})
		}
		c.buildTree()
		c.built = true
		if c.metrics != nil {
			c.metrics.RecordTreeBuild(time.Since(start))
		}
	}

	start := time.Now()
	result := c.extractPrototypes(cfg)
	if c.metrics != nil {
		c.metrics.RecordProtoExtract(time.Since(start))
	}
	if c.logger != nil {
		c.logger.Info("prototype extraction complete", map[string]interface{}{"count": len(result)})
	}
	c.prototypes = result
	return result, nil
}

// Close releases the Clusterer's cluster back-references from its
// prototypes.
func (c *Clusterer) Close() {
	for _, p := range c.prototypes {
		p.Cluster = nil
	}
}

// Root returns the cluster tree's root, or nil if ClusterSamples has
// not yet been called or no samples were ever added.
func (c *Clusterer) Root() *sampletree.Cluster { return c.root }

// mergePair is the heap payload during bottom-up tree construction: a
// candidate merge between main and its currently-nearest neighbor.
type mergePair struct {
	main, neighbor *sampletree.Cluster
}

// selfExclude returns a kdtree exclude predicate that skips node itself.
func selfExclude(node *sampletree.Cluster) func(interface{}) bool {
	return func(payload interface{}) bool {
		return payload.(*sampletree.Cluster) == node
	}
}

func (c *Clusterer) nearestNeighbor(node *sampletree.Cluster) *sampletree.Cluster {
	neighbors := c.index.KNearest(node.Mean, 1, 0, selfExclude(node))
	if len(neighbors) == 0 {
		return nil
	}
	return neighbors[0].Payload.(*sampletree.Cluster)
}

// buildTree seeds a min-heap with every leaf's nearest neighbor, then
// pop-merges until one cluster remains.
func (c *Clusterer) buildTree() {
	if c.totalSamples == 0 {
		return
	}

	h := clusterheap.New()

	var leaves []kdtree.Entry
	c.index.Walk(kdtree.Preorder, func(e kdtree.Entry, _ kdtree.VisitKind) {
		leaves = append(leaves, e)
	})

	for _, e := range leaves {
		main := e.Payload.(*sampletree.Cluster)
		if n := c.nearestNeighbor(main); n != nil {
			h.Push(paramspace.SquaredDistance(c.descs, main.Mean, n.Mean), mergePair{main: main, neighbor: n})
		}
	}

	for {
		item, ok := h.PopMin()
		if !ok {
			break
		}
		p := item.Payload.(mergePair)

		if p.main.Clustered {
			// Absorbed by an earlier, shorter merge: discard.
			if c.metrics != nil {
				c.metrics.StaleHeapEntriesDiscarded.Inc()
			}
			continue
		}

		if p.neighbor.Clustered {
			if n := c.nearestNeighbor(p.main); n != nil {
				h.Push(paramspace.SquaredDistance(c.descs, p.main.Mean, n.Mean), mergePair{main: p.main, neighbor: n})
				if c.metrics != nil {
					c.metrics.HeapRepushes.Inc()
				}
			}
			continue
		}

		merged := sampletree.Merge(c.descs, p.main, p.neighbor)
		p.main.Clustered = true
		p.neighbor.Clustered = true
		c.index.Delete(p.main.Mean, p.main)
		c.index.Delete(p.neighbor.Mean, p.neighbor)
		c.index.Insert(merged.Mean, merged)
		if c.metrics != nil {
			c.metrics.MergesPerformed.Inc()
		}

		if n := c.nearestNeighbor(merged); n != nil {
			h.Push(paramspace.SquaredDistance(c.descs, merged.Mean, n.Mean), mergePair{main: merged, neighbor: n})
			if c.metrics != nil {
				c.metrics.HeapRepushes.Inc()
			}
		}
	}

	// The sole remaining entry in the spatial index is the tree root.
	var root *sampletree.Cluster
	c.index.Walk(kdtree.Preorder, func(e kdtree.Entry, _ kdtree.VisitKind) {
		root = e.Payload.(*sampletree.Cluster)
	})
	c.root = root
}

// extractPrototypes runs the depth-first, explicit-stack prototype
// walk over the cluster tree.
func (c *Clusterer) extractPrototypes(cfg config.ClusterConfig) []*prototype.Prototype {
	if c.root == nil {
		return nil
	}

	var result []*prototype.Prototype
	stack := []*sampletree.Cluster{c.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p := c.makePrototype(n, cfg); p != nil {
			n.HasPrototype = true
			result = append(result, p)
			if c.metrics != nil {
				c.metrics.RecordPrototype(styleName(p.Style))
			}
			continue
		}

		if n.Right != nil {
			stack = append(stack, n.Right)
		}
		if n.Left != nil {
			stack = append(stack, n.Left)
		}
	}
	return result
}

// makePrototype attempts to fit a prototype to cluster n under cfg.
func (c *Clusterer) makePrototype(n *sampletree.Cluster, cfg config.ClusterConfig) *prototype.Prototype {
	if sampletree.MultipleCharSamples(n, c.numChar, cfg.MaxIllegal) {
		return nil
	}

	st := stats.Compute(n, c.descs)

	minSamples := int(cfg.MinSamples * float32(c.numChar))
	if minSamples < 1 {
		minSamples = 1
	}
	if n.Count < minSamples {
		style := cfg.ProtoStyle
		if style == prototype.Automatic {
			style = prototype.Spherical
		}
		return prototype.NewDegenerate(style, n.Mean, n)
	}

	if independenceViolated(st, c.descs, cfg.Independence) {
		return nil
	}

	normal := c.pool.Get(buckets.Normal, n.Count, cfg.Confidence)
	defer c.pool.Free(normal)

	switch cfg.ProtoStyle {
	case prototype.Spherical:
		return c.trySpherical(n, st, normal)
	case prototype.Elliptical:
		return c.tryElliptical(n, st, normal)
	case prototype.Mixed:
		return c.tryMixed(n, st, normal, cfg)
	default: // Automatic
		if p := c.trySpherical(n, st, normal); p != nil {
			return p
		}
		if p := c.tryElliptical(n, st, normal); p != nil {
			return p
		}
		return c.tryMixed(n, st, normal, cfg)
	}
}

func independenceViolated(st *stats.Statistics, descs []paramspace.ParamDesc, threshold float32) bool {
	corr := st.Correlation(descs)
	for i := 0; i < st.Dim; i++ {
		if descs[i].NonEssential {
			continue
		}
		for j := i + 1; j < st.Dim; j++ {
			if descs[j].NonEssential {
				continue
			}
			if corr[i][j] > float64(threshold) {
				return true
			}
		}
	}
	return false
}

func (c *Clusterer) recordGoF() {
	if c.metrics != nil {
		c.metrics.GoFEvaluations.Inc()
	}
}

// trySpherical tests every essential dimension against a Normal with a
// single shared stddev derived from the cluster's average variance.
func (c *Clusterer) trySpherical(n *sampletree.Cluster, st *stats.Statistics, b *buckets.Buckets) *prototype.Prototype {
	stddev := float32(math.Sqrt(st.AvgVariance))
	for i, d := range c.descs {
		if d.NonEssential {
			continue
		}
		b.Fill(n, i, d, n.Mean[i], stddev)
		c.recordGoF()
		if !b.GoodnessOfFit() {
			return nil
		}
	}
	return prototype.NewSpherical(n.Mean, st.AvgVariance, n)
}

// tryElliptical tests each essential dimension against a Normal with
// its own stddev.
func (c *Clusterer) tryElliptical(n *sampletree.Cluster, st *stats.Statistics, b *buckets.Buckets) *prototype.Prototype {
	variance := make([]float64, st.Dim)
	for i := range variance {
		variance[i] = st.Covariance[i][i]
	}
	for i, d := range c.descs {
		if d.NonEssential {
			continue
		}
		stddev := float32(math.Sqrt(variance[i]))
		b.Fill(n, i, d, n.Mean[i], stddev)
		c.recordGoF()
		if !b.GoodnessOfFit() {
			return nil
		}
	}
	return prototype.NewElliptical(n.Mean, variance, n)
}

// tryMixed runs the per-dimension fallback from Normal to Random to
// Uniform.
func (c *Clusterer) tryMixed(n *sampletree.Cluster, st *stats.Statistics, normal *buckets.Buckets, cfg config.ClusterConfig) *prototype.Prototype {
	variance := make([]float64, st.Dim)
	for i := range variance {
		variance[i] = st.Covariance[i][i]
	}
	p := prototype.NewMixedNormal(n.Mean, variance, n)

	for i, d := range c.descs {
		if d.NonEssential {
			continue
		}

		stddev := float32(math.Sqrt(variance[i]))
		normal.Fill(n, i, d, n.Mean[i], stddev)
		c.recordGoF()
		if normal.GoodnessOfFit() {
			continue
		}

		p.SetDimensionRandom(i, d)
		random := c.pool.Get(buckets.Random, n.Count, cfg.Confidence)
		random.Fill(n, i, d, p.Mean[i], p.VariancePerDim[i])
		c.recordGoF()
		pass := random.GoodnessOfFit()
		c.pool.Free(random)
		if pass {
			continue
		}

		p.SetDimensionUniform(i, n.Mean[i], st.Min[i], st.Max[i])
		uniform := c.pool.Get(buckets.Uniform, n.Count, cfg.Confidence)
		uniform.Fill(n, i, d, p.Mean[i], p.VariancePerDim[i])
		c.recordGoF()
		pass = uniform.GoodnessOfFit()
		c.pool.Free(uniform)
		if pass {
			continue
		}

		return nil
	}
	return p
}

func styleName(s prototype.Style) string {
	switch s {
	case prototype.Spherical:
		return "spherical"
	case prototype.Elliptical:
		return "elliptical"
	case prototype.Mixed:
		return "mixed"
	default:
		return "automatic"
	}
}

// NewSampleSearch begins a leaf-sample walk over a cluster subtree.
func NewSampleSearch(c *sampletree.Cluster) *sampletree.SampleSearchState {
	return sampletree.InitSampleSearch(c)
}

// NextSample advances a leaf-sample walk.
func NextSample(s *sampletree.SampleSearchState) (*sampletree.Cluster, bool) {
	return sampletree.NextSample(s)
}

// Mean returns a prototype's mean along dim.
func Mean(p *prototype.Prototype, dim int) float32 {
	return prototype.Mean(p, dim)
}

// StandardDeviation returns a prototype's standard deviation along dim.
func StandardDeviation(p *prototype.Prototype, dim int) float32 {
	return prototype.StandardDeviation(p, dim)
}
