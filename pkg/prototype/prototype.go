// Package prototype implements the parametric cluster summaries
// emitted by extraction: spherical, elliptical, and mixed
// shapes, each carrying precomputed per-dimension magnitudes and
// weights and a running product magnitude, and for Mixed style a
// per-dimension distribution tag.
package prototype

import (
	"math"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/sampletree"
)

// MinVariance is the variance floor applied everywhere a variance could
// otherwise reach zero.
const MinVariance = 4e-6

// Style is a prototype's overall shape.
type Style int

const (
	Spherical Style = iota
	Elliptical
	Mixed
	Automatic
)

// DistKind is a per-dimension distribution tag, used only by Mixed
// prototypes.
type DistKind int

const (
	DistNormal DistKind = iota
	DistUniform
	DistRandom
)

// Prototype is a parametric description of a cluster's samples. Cluster
// is a lookup-only back-reference, useful for walking the cluster's
// leaf samples after extraction. Clusterer.Close clears it so the
// subtree can be collected once the caller is done with per-sample
// detail; Mean/Variance queries keep working afterward because they
// read Prototype's own stored fields, never the Cluster.
type Prototype struct {
	Style Style
	Mean  []float32

	// Variance is used only by Spherical prototypes.
	Variance float32
	// VariancePerDim is used only by Elliptical and Mixed prototypes.
	VariancePerDim []float32

	Magnitude []float32
	Weight    []float32

	// Distribution is non-nil only for Mixed prototypes.
	Distribution []DistKind

	TotalMagnitude float64
	LogMagnitude   float64

	Significant bool
	Cluster     *sampletree.Cluster
}

func copyVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func floorVariance(v float64) float64 {
	if v < MinVariance {
		return MinVariance
	}
	return v
}

// NewSpherical builds a Spherical prototype from a single scalar
// variance shared by every dimension.
func NewSpherical(mean []float32, variance float64, cluster *sampletree.Cluster) *Prototype {
	v := floorVariance(variance)
	dim := len(mean)
	mag := float32(1.0 / math.Sqrt(2*math.Pi*v))
	weight := float32(1.0 / v)

	magnitude := make([]float32, dim)
	weights := make([]float32, dim)
	for i := range magnitude {
		magnitude[i] = mag
		weights[i] = weight
	}

	total := math.Pow(float64(mag), float64(dim))

	return &Prototype{
		Style:          Spherical,
		Mean:           copyVec(mean),
		Variance:       float32(v),
		Magnitude:      magnitude,
		Weight:         weights,
		TotalMagnitude: total,
		LogMagnitude:   math.Log(total),
		Significant:    true,
		Cluster:        cluster,
	}
}

// NewElliptical builds an Elliptical prototype from a per-dimension
// variance vector.
func NewElliptical(mean []float32, variance []float64, cluster *sampletree.Cluster) *Prototype {
	return newPerDim(Elliptical, mean, variance, nil, cluster)
}

// NewMixedNormal builds a Mixed prototype whose every dimension starts
// out Normal.
func NewMixedNormal(mean []float32, variance []float64, cluster *sampletree.Cluster) *Prototype {
	dist := make([]DistKind, len(mean))
	return newPerDim(Mixed, mean, variance, dist, cluster)
}

func newPerDim(style Style, mean []float32, variance []float64, dist []DistKind, cluster *sampletree.Cluster) *Prototype {
	dim := len(mean)
	varr := make([]float32, dim)
	magnitude := make([]float32, dim)
	weight := make([]float32, dim)

	total := 1.0
	for i, v := range variance {
		vv := floorVariance(v)
		varr[i] = float32(vv)
		m := 1.0 / math.Sqrt(2*math.Pi*vv)
		magnitude[i] = float32(m)
		weight[i] = float32(1.0 / vv)
		total *= m
	}

	return &Prototype{
		Style:          style,
		Mean:           copyVec(mean),
		VariancePerDim: varr,
		Magnitude:      magnitude,
		Weight:         weight,
		Distribution:   dist,
		TotalMagnitude: total,
		LogMagnitude:   math.Log(total),
		Significant:    true,
		Cluster:        cluster,
	}
}

// NewDegenerate builds the insignificant prototype emitted when a
// cluster has too few samples to test: the requested
// style, the cluster mean, every variance floored to MinVariance, and
// Significant == false.
func NewDegenerate(style Style, mean []float32, cluster *sampletree.Cluster) *Prototype {
	dim := len(mean)
	switch style {
	case Elliptical, Mixed:
		variance := make([]float64, dim)
		for i := range variance {
			variance[i] = MinVariance
		}
		var p *Prototype
		if style == Mixed {
			p = NewMixedNormal(mean, variance, cluster)
		} else {
			p = NewElliptical(mean, variance, cluster)
		}
		p.Significant = false
		return p
	default: // Spherical, Automatic (degenerate guard runs before style dispatch)
		p := NewSpherical(mean, MinVariance, cluster)
		p.Style = Spherical
		p.Significant = false
		return p
	}
}

// updateMagnitude runs the running-product update when a Mixed
// prototype's dimension i is mutated to a new distribution:
// total_magnitude /= old; total_magnitude *= new; log_magnitude = ln(total).
func (p *Prototype) updateMagnitude(i int, newMag float32) {
	old := p.Magnitude[i]
	p.TotalMagnitude /= float64(old)
	p.TotalMagnitude *= float64(newMag)
	p.LogMagnitude = math.Log(p.TotalMagnitude)
	p.Magnitude[i] = newMag
}

// SetDimensionRandom mutates dimension i of a Mixed prototype to the
// Random distribution: mean = mid_range,
// variance = half_range, magnitude = 1/range.
func (p *Prototype) SetDimensionRandom(i int, desc paramspace.ParamDesc) {
	p.Mean[i] = desc.MidRange
	p.VariancePerDim[i] = desc.HalfRange
	p.updateMagnitude(i, 1.0/desc.Range)
	p.Distribution[i] = DistRandom
}

// SetDimensionUniform mutates dimension i of a Mixed prototype to the
// Uniform distribution: mean = cluster.mean[i] + (min+max)/2 (min/max
// are the dimension's statistics deviations from the cluster mean),
// variance = (max-min)/2 clamped to MinVariance, magnitude = 1/(2*variance).
func (p *Prototype) SetDimensionUniform(i int, clusterMeanDim, statsMin, statsMax float32) {
	p.Mean[i] = clusterMeanDim + (statsMin+statsMax)/2
	variance := float32(floorVariance(float64((statsMax - statsMin) / 2)))
	p.VariancePerDim[i] = variance
	p.updateMagnitude(i, float32(1.0/(2*float64(variance))))
	p.Distribution[i] = DistUniform
}

// Mean returns the prototype's mean along dimension dim.
func Mean(p *Prototype, dim int) float32 {
	return p.Mean[dim]
}

// StandardDeviation returns the prototype's standard deviation along
// dimension dim: sqrt(Variance) for Spherical, sqrt(VariancePerDim[dim])
// otherwise.
func StandardDeviation(p *Prototype, dim int) float32 {
	if p.Style == Spherical {
		return float32(math.Sqrt(float64(p.Variance)))
	}
	return float32(math.Sqrt(float64(p.VariancePerDim[dim])))
}
