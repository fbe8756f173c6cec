package sampletree

import (
	"math"
	"testing"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
)

func linearDescs(dim int) []paramspace.ParamDesc {
	descs := make([]paramspace.ParamDesc, dim)
	for i := range descs {
		descs[i] = paramspace.New(0, 1, false, false)
	}
	return descs
}

func TestMergeWeightedMean(t *testing.T) {
	descs := linearDescs(1)
	l := NewSample([]float32{0.2}, 0)
	r := NewSample([]float32{0.8}, 1)
	r.Count = 3 // simulate an already-merged right child

	c := Merge(descs, l, r)
	want := float32((1*0.2 + 3*0.8) / 4)
	if math.Abs(float64(c.Mean[0]-want)) > 1e-6 {
		t.Errorf("Merge mean = %v, want %v", c.Mean[0], want)
	}
	if c.Count != 4 {
		t.Errorf("Merge count = %d, want 4", c.Count)
	}
	if c.CharID != -1 {
		t.Errorf("Merge CharID = %d, want -1", c.CharID)
	}
}

func TestMergeCircularWrapShortSide(t *testing.T) {
	descs := []paramspace.ParamDesc{paramspace.New(0, 360, true, false)}
	l := NewSample([]float32{358}, 0)
	r := NewSample([]float32{2}, 1)

	c := Merge(descs, l, r)
	// Plain averaging would give 180; the wrap-corrected mean must land
	// near 0 (equivalently 360), the short way around.
	if c.Mean[0] > 10 && c.Mean[0] < 350 {
		t.Errorf("Merge circular mean = %v, want near 0 or 360", c.Mean[0])
	}
}

func TestIsLeaf(t *testing.T) {
	s := NewSample([]float32{0}, 0)
	if !s.IsLeaf() {
		t.Error("fresh Sample reports IsLeaf() == false")
	}
	m := Merge(linearDescs(1), s, NewSample([]float32{1}, 1))
	if m.IsLeaf() {
		t.Error("merged Cluster reports IsLeaf() == true")
	}
}

func buildSmallTree(descs []paramspace.ParamDesc) *Cluster {
	a := NewSample([]float32{0}, 0)
	b := NewSample([]float32{1}, 1)
	c := NewSample([]float32{2}, 2)
	ab := Merge(descs, a, b)
	return Merge(descs, ab, c)
}

func TestNextSampleVisitsAllLeavesLeftFirst(t *testing.T) {
	descs := linearDescs(1)
	root := buildSmallTree(descs)

	st := InitSampleSearch(root)
	var ids []int
	for {
		leaf, ok := NextSample(st)
		if !ok {
			break
		}
		ids = append(ids, leaf.CharID)
	}
	want := []int{0, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("got %d leaves, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("leaf order = %v, want %v", ids, want)
		}
	}
}

func TestWalkLeavesMatchesNextSample(t *testing.T) {
	descs := linearDescs(1)
	root := buildSmallTree(descs)

	var got []int
	WalkLeaves(root, func(c *Cluster) { got = append(got, c.CharID) })
	if len(got) != 3 {
		t.Fatalf("WalkLeaves visited %d leaves, want 3", len(got))
	}
}

func TestMultipleCharSamplesFalseWhenAllDistinct(t *testing.T) {
	descs := linearDescs(1)
	root := buildSmallTree(descs)
	if MultipleCharSamples(root, 3, 1.0) {
		t.Error("MultipleCharSamples = true for all-distinct char ids")
	}
}

func TestMultipleCharSamplesTrueOnRepeat(t *testing.T) {
	descs := linearDescs(1)
	a := NewSample([]float32{0}, 0)
	b := NewSample([]float32{1}, 0) // repeats char id 0
	root := Merge(descs, a, b)

	if !MultipleCharSamples(root, 1, 0.1) {
		t.Error("MultipleCharSamples = false, want true for repeated char id over threshold")
	}
}

func TestMultipleCharSamplesIgnoresOutOfRangeIDs(t *testing.T) {
	descs := linearDescs(1)
	a := NewSample([]float32{0}, 5) // numChar=3 means this id is out of range
	b := NewSample([]float32{1}, 6)
	root := Merge(descs, a, b)

	if MultipleCharSamples(root, 3, 0.1) {
		t.Error("MultipleCharSamples = true for out-of-range char ids, want false")
	}
}
