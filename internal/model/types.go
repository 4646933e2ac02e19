// Package model holds the types shared by every layer of the engine:
// the graph/vector data model, statistics, and the results returned by
// the query engine. The root package re-exports these as public aliases.
package model

import "time"

// Node is a single vertex in the graph. ID is immutable once a node has
// been appended; re-appending the same id overwrites the whole record,
// label included, in place.
type Node struct {
	ID        uint64
	Label     string
	Embedding []float32 // nil if the node has no embedding installed
	AgentID   string     // empty if unset
	RuleTags  []string   // nil if unset; insertion order is not significant
	CreatedAt time.Time  // zero if unset
}

// HasEmbedding reports whether the node carries a vector.
func (n Node) HasEmbedding() bool { return n.Embedding != nil }

// Edge is a directed, labeled tuple stored on the source node's adjacency
// list. Duplicate (From, To, Type) triples are permitted.
type Edge struct {
	From uint64
	To   uint64
	Type string
}

// Decision is one audit entry: the path an agent took through the graph
// and the score it was assigned. ID is assigned by the engine and is
// monotonically increasing across the lifetime of a database.
type Decision struct {
	ID        uint64
	AgentID   string
	Root      uint64
	Path      []uint64
	Score     float32
	Notes     string
	CreatedAt time.Time
}

// Stats are the four derived counters exposed by the engine.
type Stats struct {
	NodeCount      int
	EdgeCount      int
	EmbeddingCount int
	DecisionCount  int
}

// BFSStep is one entry in a bounded-hop traversal's emission order.
type BFSStep struct {
	ID          uint64
	Hop         int
	HasPred     bool
	Predecessor uint64
}

// KNNResult is one (id, distance) pair returned by a vector search, after
// translation from physical slot back to node id.
type KNNResult struct {
	ID       uint64
	Distance float32
}

// HybridResult is one ranked candidate from a hybrid query.
type HybridResult struct {
	ID             uint64
	Score          float32
	VectorDistance float32
	GraphDistance  int
	Path           []uint64
}
