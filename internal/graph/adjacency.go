package graph

import (
	"sync"

	"github.com/barqdb/barq/internal/model"
)

// Neighbor is one outgoing edge target, in the order it was added.
type Neighbor struct {
	To   uint64
	Type string
}

// Adjacency is the forward adjacency index: node id to ordered outgoing
// (target, type) pairs. No reverse index is maintained, matching the
// spec's one-directional contract.
type Adjacency struct {
	mu   sync.RWMutex
	out  map[uint64][]Neighbor
}

// NewAdjacency returns an empty adjacency index.
func NewAdjacency() *Adjacency {
	return &Adjacency{out: make(map[uint64][]Neighbor)}
}

// AddEdge appends (to, type) to from's outgoing list. Duplicate triples
// are permitted; this is an O(1) amortized append.
func (a *Adjacency) AddEdge(e model.Edge) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out[e.From] = append(a.out[e.From], Neighbor{To: e.To, Type: e.Type})
}

// Neighbors returns from's outgoing edges in insertion order. The
// returned slice must not be mutated by the caller.
func (a *Adjacency) Neighbors(from uint64) []Neighbor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.out[from]
}

// EdgeCount returns the total number of edges added.
func (a *Adjacency) EdgeCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, ns := range a.out {
		n += len(ns)
	}
	return n
}
