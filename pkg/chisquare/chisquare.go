// Package chisquare inverts the (even-degrees-of-freedom) chi-squared
// CDF numerically. It uses a primitive secant-style root finder and
// per-degrees-of-freedom memoization rather than delegating to a
// general statistics library, because the exact convergence path and
// thresholds are load-bearing, not just the final answer.
package chisquare

import "math"

// MaxDegreesOfFreedom is the largest bucket count the buckets package
// uses, and so an upper bound on the degrees of freedom it requests. The
// Solver cache itself is not limited by this constant.
const MaxDegreesOfFreedom = 39

// Solver owns a per-degrees-of-freedom cache of previously solved
// (alpha -> x) values, kept as a field rather than package-level state
// so multiple Clusterers never share or race over it.
type Solver struct {
	cache map[int]map[float64]float64
}

// NewSolver returns an empty solver.
func NewSolver() *Solver {
	return &Solver{cache: make(map[int]map[float64]float64)}
}

// ChiSquared returns x such that the upper-tail area of the chi-squared
// distribution with dof degrees of freedom equals alpha. dof is rounded
// up to the next even number; alpha is clamped to [1e-200, 1].
func (s *Solver) ChiSquared(dof int, alpha float64) float64 {
	if dof%2 != 0 {
		dof++
	}
	if dof < 2 {
		dof = 2
	}
	if alpha < 1e-200 {
		alpha = 1e-200
	}
	if alpha > 1 {
		alpha = 1
	}

	byAlpha, ok := s.cache[dof]
	if !ok {
		byAlpha = make(map[float64]float64)
		s.cache[dof] = byAlpha
	}
	if x, ok := byAlpha[alpha]; ok {
		return x
	}

	x := solve(func(x float64) float64 { return chiArea(x, dof, alpha) }, float64(dof), 0.01)
	byAlpha[alpha] = x
	return x
}

// chiArea evaluates, for even dof, the upper-tail area of the
// chi-squared density at x minus alpha:
//
//	(sum_{i=0..N} x^i / (2*4*...*2i)) * e^(-x/2) - alpha,  N = dof/2 - 1
//
// The series is the closed form obtained by repeated integration by
// parts of the chi-squared density for even degrees of freedom; each
// term is generated from the last via term_i = term_{i-1} * x/(2*i) to
// avoid computing factorials directly.
func chiArea(x float64, dof int, alpha float64) float64 {
	n := dof/2 - 1
	sum := 1.0
	term := 1.0
	for i := 1; i <= n; i++ {
		term *= x / (2 * float64(i))
		sum += term
	}
	return sum*math.Exp(-x/2) - alpha
}

// solve is a primitive secant-like root finder: it walks x toward a
// root of f using a locally estimated slope, shrinking its step size as
// it converges, and stops once the tightest bracket of positive- and
// negative-valued x it has observed is narrower than acc. It does not
// detect or report divergence; callers must supply a function and
// initial guess for which this converges.
func solve(f func(float64) float64, x0, acc float64) float64 {
	x := x0
	delta := 0.1
	lastPosX := math.Inf(1)
	lastNegX := math.Inf(-1)

	for math.Abs(lastPosX-lastNegX) > acc {
		f0 := f(x)
		if f0 >= 0 {
			lastPosX = x
		} else {
			lastNegX = x
		}

		slope := (f(x+delta) - f0) / delta
		dx := f0 / slope
		x -= dx

		if step := 0.1 * math.Abs(dx); step < delta {
			delta = step
		}
	}
	return x
}
