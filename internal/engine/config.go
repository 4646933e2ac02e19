package engine

// IndexType selects which vectorindex.Index implementation backs a
// database, fixed for the lifetime of an open Engine.
type IndexType int

const (
	IndexBruteForce IndexType = iota
	IndexProximityGraph
)

// Config is the full set of options fixed at Open.
type Config struct {
	IndexType          IndexType
	SyncWrites         bool
	AsyncIndexing      bool
	HNSWM              int
	HNSWEfConstruction int
	HNSWEfSearch       int
	AsyncQueueCapacity int
}
