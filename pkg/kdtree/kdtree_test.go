package kdtree

import (
	"math"
	"testing"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
)

func linearDescs(dim int) []paramspace.ParamDesc {
	descs := make([]paramspace.ParamDesc, dim)
	for i := range descs {
		descs[i] = paramspace.New(0, 100, false, false)
	}
	return descs
}

func TestKNearestOrdersByDistance(t *testing.T) {
	descs := linearDescs(2)
	tr := New(2, descs)

	points := map[string][]float32{
		"origin": {0, 0},
		"near":   {1, 1},
		"mid":    {5, 5},
		"far":    {50, 50},
	}
	for name, p := range points {
		tr.Insert(p, name)
	}

	got := tr.KNearest([]float32{0, 0}, 3, 0, nil)
	if len(got) != 3 {
		t.Fatalf("KNearest returned %d results, want 3", len(got))
	}
	want := []string{"origin", "near", "mid"}
	for i, w := range want {
		if got[i].Payload != w {
			t.Errorf("result[%d] = %v, want %v", i, got[i].Payload, w)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("results not sorted ascending by distance: %v", got)
		}
	}
}

func TestKNearestExcludesSelf(t *testing.T) {
	descs := linearDescs(1)
	tr := New(1, descs)
	tr.Insert([]float32{0}, "a")
	tr.Insert([]float32{1}, "b")

	got := tr.KNearest([]float32{0}, 1, 0, func(p interface{}) bool {
		return p == "a"
	})
	if len(got) != 1 || got[0].Payload != "b" {
		t.Fatalf("KNearest with self-exclude = %v, want [b]", got)
	}
}

func TestDeleteThenKNearestSkipsRemoved(t *testing.T) {
	descs := linearDescs(1)
	tr := New(1, descs)
	tr.Insert([]float32{0}, "a")
	tr.Insert([]float32{1}, "b")
	tr.Insert([]float32{2}, "c")

	if !tr.Delete([]float32{1}, "b") {
		t.Fatal("Delete reported no entry removed")
	}
	if tr.Len() != 2 {
		t.Fatalf("Len after delete = %d, want 2", tr.Len())
	}

	got := tr.KNearest([]float32{1}, 1, 0, nil)
	if len(got) != 1 {
		t.Fatalf("KNearest returned %d results, want 1", len(got))
	}
	if got[0].Payload == "b" {
		t.Error("deleted entry still returned by KNearest")
	}
}

func TestDeleteDuplicateKeysRemovesCorrectPayload(t *testing.T) {
	descs := linearDescs(1)
	tr := New(1, descs)
	tr.Insert([]float32{5}, "first")
	tr.Insert([]float32{5}, "second")

	if !tr.Delete([]float32{5}, "first") {
		t.Fatal("Delete reported no entry removed")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len after delete = %d, want 1", tr.Len())
	}

	got := tr.KNearest([]float32{5}, 2, 0, nil)
	if len(got) != 1 || got[0].Payload != "second" {
		t.Fatalf("remaining entries = %v, want [second]", got)
	}
}

func TestWalkVisitsEveryEntryExactlyOnce(t *testing.T) {
	descs := linearDescs(1)
	tr := New(1, descs)
	for i := 0; i < 20; i++ {
		tr.Insert([]float32{float32(i)}, i)
	}

	seen := make(map[int]int)
	tr.Walk(Preorder, func(e Entry, _ VisitKind) {
		seen[e.Payload.(int)]++
	})
	if len(seen) != 20 {
		t.Fatalf("Walk visited %d distinct entries, want 20", len(seen))
	}
	for k, count := range seen {
		if count != 1 {
			t.Errorf("entry %d visited %d times, want 1", k, count)
		}
	}
}

func TestKNearestCircularWraparound(t *testing.T) {
	descs := []paramspace.ParamDesc{paramspace.New(0, 360, true, false)}
	tr := New(1, descs)
	tr.Insert([]float32{359}, "near-wrap")
	tr.Insert([]float32{180}, "far")
	tr.Insert([]float32{1}, "query-point")

	got := tr.KNearest([]float32{0}, 1, 0, func(p interface{}) bool {
		return p == "query-point"
	})
	if len(got) != 1 || got[0].Payload != "near-wrap" {
		t.Fatalf("KNearest around wraparound = %v, want [near-wrap]", got)
	}
	if math.Abs(float64(got[0].Distance)-1) > 1e-6 {
		t.Errorf("wraparound distance = %v, want 1", got[0].Distance)
	}
}

func TestKNearestMaxDistanceFilters(t *testing.T) {
	descs := linearDescs(1)
	tr := New(1, descs)
	tr.Insert([]float32{0}, "near")
	tr.Insert([]float32{50}, "far")

	got := tr.KNearest([]float32{0}, 2, 10, nil)
	if len(got) != 1 || got[0].Payload != "near" {
		t.Fatalf("KNearest with maxDistance = %v, want [near]", got)
	}
}
