// Package paramspace describes the per-dimension shape of the feature
// space a Clusterer operates over: which axes wrap around (circular,
// e.g. angles), which are ignored by statistical tests (nonessential),
// and the value range each axis spans.
package paramspace

// ParamDesc describes one dimension of the feature vectors fed into a
// Clusterer. Range, HalfRange and MidRange are derived from Min/Max at
// construction time so hot paths (distance, merge, bucket fill) never
// recompute them.
type ParamDesc struct {
	Circular     bool
	NonEssential bool

	Min, Max float32

	Range     float32
	HalfRange float32
	MidRange  float32
}

// New builds a ParamDesc, deriving Range/HalfRange/MidRange from min/max.
func New(min, max float32, circular, nonEssential bool) ParamDesc {
	r := max - min
	return ParamDesc{
		Circular:     circular,
		NonEssential: nonEssential,
		Min:          min,
		Max:          max,
		Range:        r,
		HalfRange:    r / 2,
		MidRange:     (max + min) / 2,
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// CircularAxisDelta returns the effective (possibly wrapped) difference
// x-y on this dimension, for use in a squared-distance accumulation. For
// a circular dimension whose raw delta exceeds HalfRange in magnitude,
// the shorter way around the wrap is returned instead.
func CircularAxisDelta(d ParamDesc, x, y float32) float32 {
	delta := x - y
	if d.Circular {
		ad := abs32(delta)
		if ad > d.HalfRange {
			return d.Range - ad
		}
	}
	return delta
}

// WrapDeviation corrects a signed deviation (e.g. sample-mean minus
// cluster-mean) for circular wraparound: a deviation larger than half the
// range is folded to the shorter way around the circle, preserving sign.
func WrapDeviation(d ParamDesc, dev float32) float32 {
	if d.Circular {
		if dev > d.HalfRange {
			dev -= d.Range
		} else if dev < -d.HalfRange {
			dev += d.Range
		}
	}
	return dev
}

// WrapValue folds a value back into [Min, Max) for a circular dimension.
func WrapValue(d ParamDesc, v float32) float32 {
	if !d.Circular {
		return v
	}
	for v < d.Min {
		v += d.Range
	}
	for v >= d.Max {
		v -= d.Range
	}
	return v
}

// SquaredDistance computes the circular-aware squared Euclidean distance
// between two feature vectors under the given descriptors. Nonessential dimensions still contribute here; the nonessential
// filter only applies in the statistics/test components.
func SquaredDistance(descs []ParamDesc, a, b []float32) float32 {
	var sum float32
	for i, d := range descs {
		delta := CircularAxisDelta(d, a[i], b[i])
		sum += delta * delta
	}
	return sum
}
