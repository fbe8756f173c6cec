// Package kdtree implements a k-d tree over feature vectors supporting
// insert, delete, ordered walks, and bounded k-nearest-neighbor
// search, with per-dimension circular wraparound baked into the
// distance metric.
//
// The tree is the Clusterer's scratch structure for agglomerative
// merging: entries are removed as their clusters are absorbed and the
// merged cluster is reinserted, so it never holds more live entries
// than there are unmerged clusters.
package kdtree

import (
	"container/heap"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/paramspace"
)

// Entry is a (key, payload) pair stored at a tree node.
type Entry struct {
	Key     []float32
	Payload interface{}
}

type node struct {
	entry       Entry
	axis        int
	left, right *node
}

// Tree is a k-d tree over vectors of the given dimensionality, using
// descs to decide per-axis circular wraparound for distance
// computations.
type Tree struct {
	dim   int
	descs []paramspace.ParamDesc
	root  *node
	size  int
}

// New creates an empty tree. descs must have length dim.
func New(dim int, descs []paramspace.ParamDesc) *Tree {
	return &Tree{dim: dim, descs: descs}
}

// Len reports the number of entries currently in the tree.
func (t *Tree) Len() int { return t.size }

// Insert adds (key, payload) to the tree.
func (t *Tree) Insert(key []float32, payload interface{}) {
	e := Entry{Key: key, Payload: payload}
	t.root = t.insert(t.root, e, 0)
	t.size++
}

func (t *Tree) insert(n *node, e Entry, depth int) *node {
	if n == nil {
		return &node{entry: e, axis: depth % t.dim}
	}
	if e.Key[n.axis] < n.entry.Key[n.axis] {
		n.left = t.insert(n.left, e, depth+1)
	} else {
		n.right = t.insert(n.right, e, depth+1)
	}
	return n
}

// Delete removes the entry matching both key and payload (by ==
// comparison on Payload) from the tree. It reports whether an entry was
// removed.
func (t *Tree) Delete(key []float32, payload interface{}) bool {
	var removed bool
	t.root, removed = t.delete(t.root, key, payload)
	if removed {
		t.size--
		return true
	}
	// Fallback linear scan: guards against the rare case where two
	// equal-valued keys route search down the wrong branch relative to
	// where a particular payload was originally inserted.
	if t.deletePayloadLinear(payload) {
		t.size--
		return true
	}
	return false
}

func (t *Tree) delete(n *node, key []float32, payload interface{}) (*node, bool) {
	if n == nil {
		return nil, false
	}
	if sameKey(n.entry.Key, key) && n.entry.Payload == payload {
		return t.deleteNode(n), true
	}
	if key[n.axis] < n.entry.Key[n.axis] {
		var ok bool
		n.left, ok = t.delete(n.left, key, payload)
		return n, ok
	}
	var ok bool
	n.right, ok = t.delete(n.right, key, payload)
	return n, ok
}

// deleteNode removes n itself, per the classic k-d tree deletion
// algorithm: replace with the minimum of the right subtree along n's
// axis (or the left subtree's minimum, promoted to the right, if there
// is no right child).
func (t *Tree) deleteNode(n *node) *node {
	if n.right != nil {
		min := findMin(n.right, n.axis, t.dim)
		n.entry = min.entry
		n.right, _ = t.delete(n.right, min.entry.Key, min.entry.Payload)
		return n
	}
	if n.left != nil {
		min := findMin(n.left, n.axis, t.dim)
		n.entry = min.entry
		n.right, _ = t.delete(n.left, min.entry.Key, min.entry.Payload)
		n.left = nil
		return n
	}
	return nil
}

// findMin returns the node with the smallest value along targetAxis in
// the subtree rooted at n, accounting for axis alternation.
func findMin(n *node, targetAxis, dim int) *node {
	if n == nil {
		return nil
	}
	if n.axis == targetAxis {
		if n.left == nil {
			return n
		}
		return findMin(n.left, targetAxis, dim)
	}
	best := n
	if l := findMin(n.left, targetAxis, dim); l != nil && l.entry.Key[targetAxis] < best.entry.Key[targetAxis] {
		best = l
	}
	if r := findMin(n.right, targetAxis, dim); r != nil && r.entry.Key[targetAxis] < best.entry.Key[targetAxis] {
		best = r
	}
	return best
}

func (t *Tree) deletePayloadLinear(payload interface{}) bool {
	var target *node
	var parent *node
	var fromLeft bool
	var walk func(n, p *node, isLeft bool)
	walk = func(n, p *node, isLeft bool) {
		if n == nil || target != nil {
			return
		}
		if n.entry.Payload == payload {
			target, parent, fromLeft = n, p, isLeft
			return
		}
		walk(n.left, n, true)
		walk(n.right, n, false)
	}
	walk(t.root, nil, false)
	if target == nil {
		return false
	}
	replacement := t.deleteNode(target)
	switch {
	case parent == nil:
		t.root = replacement
	case fromLeft:
		parent.left = replacement
	default:
		parent.right = replacement
	}
	return true
}

func sameKey(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// VisitKind classifies why a node is being reported to a Walk visitor.
type VisitKind int

const (
	VisitPreorder VisitKind = iota
	VisitPostorder
	VisitLeaf
)

// WalkOrder selects which traversal Walk performs over internal nodes.
type WalkOrder int

const (
	Preorder WalkOrder = iota
	Inorder
	Postorder
)

// Walk visits every entry in the tree in the requested order. Leaves are
// always reported with VisitLeaf; internal nodes are reported with
// VisitPreorder and/or VisitPostorder depending on order.
func (t *Tree) Walk(order WalkOrder, visit func(Entry, VisitKind)) {
	t.walk(t.root, order, visit)
}

func (t *Tree) walk(n *node, order WalkOrder, visit func(Entry, VisitKind)) {
	if n == nil {
		return
	}
	if n.left == nil && n.right == nil {
		visit(n.entry, VisitLeaf)
		return
	}
	switch order {
	case Preorder:
		visit(n.entry, VisitPreorder)
		t.walk(n.left, order, visit)
		t.walk(n.right, order, visit)
	case Inorder:
		t.walk(n.left, order, visit)
		visit(n.entry, VisitPreorder)
		t.walk(n.right, order, visit)
	case Postorder:
		t.walk(n.left, order, visit)
		t.walk(n.right, order, visit)
		visit(n.entry, VisitPostorder)
	}
}

// neighborCandidate is one entry considered during a k-nearest search.
type neighborCandidate struct {
	entry Entry
	dist  float32
}

// candidateMaxHeap keeps the k best (smallest-distance) candidates seen
// so far, with the worst of them at the root for O(log k) eviction.
type candidateMaxHeap []neighborCandidate

func (h candidateMaxHeap) Len() int            { return len(h) }
func (h candidateMaxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h candidateMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateMaxHeap) Push(x interface{}) { *h = append(*h, x.(neighborCandidate)) }
func (h *candidateMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Neighbor is one result of a KNearest search.
type Neighbor struct {
	Payload  interface{}
	Key      []float32
	Distance float32
}

// KNearest returns up to k entries nearest to query (by circular-aware
// squared Euclidean distance), sorted by ascending distance. If
// maxDistance > 0, candidates farther than maxDistance are excluded. If
// exclude is non-nil, entries for which it returns true are skipped
// (used by the Clusterer to discard a sample's own entry when it is
// still present in the tree during seeding, a robust generalization of
// "k=2, discard the self-match").
func (t *Tree) KNearest(query []float32, k int, maxDistance float32, exclude func(interface{}) bool) []Neighbor {
	if k <= 0 || t.root == nil {
		return nil
	}
	h := &candidateMaxHeap{}
	t.searchKNN(t.root, query, k, maxDistance, exclude, h)

	result := make([]Neighbor, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		c := heap.Pop(h).(neighborCandidate)
		result[i] = Neighbor{Payload: c.entry.Payload, Key: c.entry.Key, Distance: c.dist}
	}
	return result
}

func (t *Tree) searchKNN(n *node, query []float32, k int, maxDistance float32, exclude func(interface{}) bool, h *candidateMaxHeap) {
	if n == nil {
		return
	}
	if exclude == nil || !exclude(n.entry.Payload) {
		d := paramspace.SquaredDistance(t.descs, query, n.entry.Key)
		if maxDistance <= 0 || d <= maxDistance {
			if h.Len() < k {
				heap.Push(h, neighborCandidate{entry: n.entry, dist: d})
			} else if d < (*h)[0].dist {
				heap.Pop(h)
				heap.Push(h, neighborCandidate{entry: n.entry, dist: d})
			}
		}
	}

	first, second := n.left, n.right
	if query[n.axis] >= n.entry.Key[n.axis] {
		first, second = n.right, n.left
	}

	t.searchKNN(first, query, k, maxDistance, exclude, h)

	// A circular axis can make a point on the "wrong" side of the
	// splitting plane the true nearest neighbor by wrapping around, so
	// the raw axis-aligned distance is not a safe pruning bound there:
	// always descend into the second branch for circular dimensions.
	if t.descs[n.axis].Circular {
		t.searchKNN(second, query, k, maxDistance, exclude, h)
		return
	}

	planeDelta := query[n.axis] - n.entry.Key[n.axis]
	planeDistSq := planeDelta * planeDelta
	if h.Len() < k || planeDistSq < (*h)[0].dist {
		t.searchKNN(second, query, k, maxDistance, exclude, h)
	}
}
