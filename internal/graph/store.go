// Package graph holds the in-memory node store and forward adjacency
// index, plus the bounded-hop BFS traversal over that adjacency.
package graph

import (
	"sync"

	"github.com/barqdb/barq/internal/model"
)

// NodeStore is an id-keyed mapping from node id to node record, with O(1)
// get and upsert and insertion-order enumeration. Reusing an id on upsert
// overwrites the record in place; its position in the enumeration order
// does not change.
type NodeStore struct {
	mu    sync.RWMutex
	byID  map[uint64]model.Node
	order []uint64
}

// NewNodeStore returns an empty store.
func NewNodeStore() *NodeStore {
	return &NodeStore{byID: make(map[uint64]model.Node)}
}

// Upsert installs n, replacing any existing record for n.ID in place.
func (s *NodeStore) Upsert(n model.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[n.ID]; !exists {
		s.order = append(s.order, n.ID)
	}
	s.byID[n.ID] = n
}

// Get returns the node for id and whether it exists.
func (s *NodeStore) Get(id uint64) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

// SetEmbedding updates the embedding of an existing node in place. The
// caller is responsible for confirming the node exists.
func (s *NodeStore) SetEmbedding(id uint64, embedding []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return
	}
	n.Embedding = embedding
	s.byID[id] = n
}

// List returns every node in insertion order.
func (s *NodeStore) List() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of distinct node ids stored.
func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
