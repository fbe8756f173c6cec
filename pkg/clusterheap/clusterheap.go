// Package clusterheap implements the min-heap used to drive agglomerative
// cluster-tree construction: a priority queue of (distance, payload)
// pairs popped in ascending distance order.
package clusterheap

import "container/heap"

// Item is one entry in the heap: a key (merge distance) and an opaque
// payload (the candidate merge pair).
type Item struct {
	Key     float32
	Payload interface{}
}

// innerHeap implements container/heap.Interface as a min-heap over Key.
type innerHeap []Item

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return h[i].Key < h[j].Key }
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x interface{}) { *h = append(*h, x.(Item)) }
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Heap is a min-heap of (key, payload) pairs, smallest key popped first.
// Used only during cluster-tree construction; it never
// removes stale entries, relying on the caller to check the payload's
// own staleness flag at pop time.
type Heap struct {
	h innerHeap
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{h: make(innerHeap, 0)}
}

// Len reports the number of entries currently queued.
func (p *Heap) Len() int { return len(p.h) }

// Push inserts (key, payload) into the heap.
func (p *Heap) Push(key float32, payload interface{}) {
	heap.Push(&p.h, Item{Key: key, Payload: payload})
}

// PopMin removes and returns the item with the smallest key. ok is false
// if the heap is empty.
func (p *Heap) PopMin() (Item, bool) {
	if len(p.h) == 0 {
		return Item{}, false
	}
	return heap.Pop(&p.h).(Item), true
}
