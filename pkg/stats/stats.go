// Package stats computes the per-cluster statistics needs
// for prototype fitting: per-dimension min/max deviation from the
// cluster mean, the full covariance matrix (Bessel-corrected, with a
// small-sample guard), the geometric-mean-of-diagonal "average
// variance", and the correlation matrix used by the independence guard.
package stats

import (
	"math"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/sampletree"
)

// Statistics holds the per-dimension and pairwise statistics of one
// cluster, computed once by Compute and freed by the caller (there is no
// native resource to release in this port; Statistics is a plain value
// the caller simply stops referencing).
type Statistics struct {
	Dim int

	// Min/Max are the smallest/largest (circular-corrected) deviation of
	// any leaf sample from the cluster mean, per dimension.
	Min []float32
	Max []float32

	// Covariance is the Dim x Dim sample covariance matrix of the
	// (circular-corrected) leaf deviations from the cluster mean.
	Covariance [][]float64

	// AvgVariance is the geometric mean of Covariance's diagonal, with any
	// non-positive diagonal entry counted as minVarianceFloor.
	AvgVariance float64
}

// Compute walks every leaf sample under c and accumulates the
// per-cluster statistics: covariance, min/max deviation, and average
// variance. Pairwise correlation is derived later by Correlation.
func Compute(c *sampletree.Cluster, descs []paramspace.ParamDesc) *Statistics {
	dim := len(descs)
	s := &Statistics{
		Dim:        dim,
		Min:        make([]float32, dim),
		Max:        make([]float32, dim),
		Covariance: make([][]float64, dim),
	}
	for i := range s.Covariance {
		s.Covariance[i] = make([]float64, dim)
	}

	sumOuter := make([][]float64, dim)
	for i := range sumOuter {
		sumOuter[i] = make([]float64, dim)
	}

	dev := make([]float64, dim)
	first := true

	sampletree.WalkLeaves(c, func(leaf *sampletree.Cluster) {
		for i, d := range descs {
			raw := leaf.Mean[i] - c.Mean[i]
			corrected := paramspace.WrapDeviation(d, raw)
			dev[i] = float64(corrected)

			if first {
				s.Min[i] = corrected
				s.Max[i] = corrected
			} else {
				if corrected < s.Min[i] {
					s.Min[i] = corrected
				}
				if corrected > s.Max[i] {
					s.Max[i] = corrected
				}
			}
		}
		first = false

		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				sumOuter[i][j] += dev[i] * dev[j]
			}
		}
	})

	denom := c.Count - 1
	if denom < 1 {
		denom = 1
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			s.Covariance[i][j] = sumOuter[i][j] / float64(denom)
		}
	}

	product := 1.0
	for i := 0; i < dim; i++ {
		v := s.Covariance[i][i]
		if v <= 0 {
			v = minVarianceFloor
		}
		product *= v
	}
	s.AvgVariance = math.Pow(product, 1/float64(dim))

	return s
}

// minVarianceFloor mirrors prototype.MinVariance as a local constant, so
// stats does not import the prototype package.
const minVarianceFloor = 4e-6

// Correlation returns the upper-triangle correlation matrix implied by
// s.Covariance, using the source engine's literal (non-textbook) double
// square root formula: sqrt(sqrt(sigma_ij^2 / (sigma_ii * sigma_jj))).
// This is intentional and
// must not be "corrected" to the textbook |sigma_ij|/sqrt(sigma_ii*sigma_jj).
// Nonessential dimensions are skipped entirely (both as i and as j).
func (s *Statistics) Correlation(descs []paramspace.ParamDesc) [][]float64 {
	corr := make([][]float64, s.Dim)
	for i := range corr {
		corr[i] = make([]float64, s.Dim)
	}
	for i := 0; i < s.Dim; i++ {
		if descs[i].NonEssential {
			continue
		}
		for j := i + 1; j < s.Dim; j++ {
			if descs[j].NonEssential {
				continue
			}
			sii, sjj := s.Covariance[i][i], s.Covariance[j][j]
			if sii == 0 || sjj == 0 {
				corr[i][j] = 0
				continue
			}
			ratio := (s.Covariance[i][j] * s.Covariance[i][j]) / (sii * sjj)
			if ratio < 0 {
				ratio = 0
			}
			corr[i][j] = math.Sqrt(math.Sqrt(ratio))
		}
	}
	return corr
}
