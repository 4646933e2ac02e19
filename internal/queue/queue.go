// Package queue provides the bounded priority queue used by both vector
// index variants: a max-heap caps the brute-force kNN candidate set at k,
// and a min-heap drives the best-first search frontier inside the
// proximity-graph variant.
package queue

import "container/heap"

var _ heap.Interface = (*PriorityQueue)(nil)

// Item is one (slot, distance) candidate. Slot is the vector index's
// physical slot, not a node id.
type Item struct {
	Slot     uint64
	Distance float32
	index    int
}

// PriorityQueue implements heap.Interface over Items. isMax selects a
// max-heap (largest distance on top, for bounding a kNN result set to its
// k best) or a min-heap (smallest distance on top, for a best-first
// search frontier).
type PriorityQueue struct {
	isMax bool
	items []*Item
}

// NewMin returns an empty min-heap: Pop yields the smallest distance.
func NewMin() *PriorityQueue { return &PriorityQueue{isMax: false} }

// NewMax returns an empty max-heap: Pop yields the largest distance.
func NewMax() *PriorityQueue { return &PriorityQueue{isMax: true} }

func (pq *PriorityQueue) Len() int { return len(pq.items) }

func (pq *PriorityQueue) Less(i, j int) bool {
	// Equal distances order by slot, so the top of a max-heap is the
	// larger slot and the top of a min-heap the smaller one.
	if pq.items[i].Distance == pq.items[j].Distance {
		if pq.isMax {
			return pq.items[i].Slot > pq.items[j].Slot
		}
		return pq.items[i].Slot < pq.items[j].Slot
	}
	if pq.isMax {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq *PriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index, pq.items[j].index = i, j
}

func (pq *PriorityQueue) Push(x any) {
	item := x.(*Item)
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *PriorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	pq.items = old[:n-1]
	return item
}

// PushItem pushes (slot, distance) onto the queue.
func (pq *PriorityQueue) PushItem(slot uint64, distance float32) {
	heap.Push(pq, &Item{Slot: slot, Distance: distance})
}

// PopItem removes and returns the top item.
func (pq *PriorityQueue) PopItem() *Item {
	return heap.Pop(pq).(*Item)
}

// PeekItem returns the top item without removing it.
func (pq *PriorityQueue) PeekItem() *Item {
	return pq.items[0]
}
