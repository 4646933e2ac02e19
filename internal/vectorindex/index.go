// Package vectorindex implements the vector index contract shared by the
// brute-force and proximity-graph (HNSW-family) variants: install a
// vector at the next physical slot, run an exact-or-approximate kNN
// search by squared Euclidean distance, and report population size.
package vectorindex

import "errors"

// ErrDimensionMismatch is returned by Install when a vector's length
// does not match the dimension fixed by the first installed vector.
var ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")

// Result is one (physical slot, squared L2 distance) pair.
type Result struct {
	Slot     uint64
	Distance float32
}

// Index is the contract both variants implement.
type Index interface {
	// Install appends vec at the next physical slot and returns that
	// slot. Returns ErrDimensionMismatch if vec's length differs from
	// the dimension fixed by the first call to Install.
	Install(vec []float32) (uint64, error)

	// KNN returns up to k (slot, distance) pairs ordered by increasing
	// distance, ties broken by increasing slot. Returns an empty slice,
	// never an error, when the index is empty.
	KNN(query []float32, k int) []Result

	// Size returns the number of installed vectors (including any
	// slots superseded by the logical-to-physical mapping — the index
	// itself never retracts).
	Size() int

	// Dim returns the fixed dimension, or 0 if no vector has been
	// installed yet.
	Dim() int
}
