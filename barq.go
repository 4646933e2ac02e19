// Package barq implements Barq-GraphDB, an embedded hybrid graph and
// vector database engine: an append-only WAL, a forward adjacency graph
// index with bounded-hop traversal, a pluggable vector index (exact
// brute-force or an HNSW-family proximity graph), an optional
// asynchronous indexing pipeline, a hybrid scorer that fuses vector
// similarity with graph distance, and a decision audit log.
package barq

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/barqdb/barq/internal/engine"
	"github.com/barqdb/barq/internal/model"
)

const versionFileName = "VERSION"
const currentVersion = "1"

// Re-exported data model. Internal layers operate on model.* directly;
// the public surface uses these aliases so callers never import an
// internal package.
type (
	Node          = model.Node
	Edge          = model.Edge
	Decision      = model.Decision
	Stats         = model.Stats
	BFSStep       = model.BFSStep
	KNNResult     = model.KNNResult
	HybridResult  = model.HybridResult
)

// DB is a single open database. It is safe for concurrent use by
// multiple goroutines.
type DB struct {
	eng *engine.Engine
	cfg config
}

// Open opens (creating if necessary) the database directory at dir.
func Open(dir string, opts ...Option) (*DB, error) {
	cfg := applyOptions(opts)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newError("open", KindIoError, err)
	}
	if err := ensureVersionFile(dir); err != nil {
		return nil, newError("open", KindCorruptLog, err)
	}

	engCfg := engine.Config{
		SyncWrites:         cfg.syncWrites,
		AsyncIndexing:      cfg.asyncIndexing,
		HNSWM:              cfg.hnswM,
		HNSWEfConstruction: cfg.hnswEfConstruction,
		HNSWEfSearch:       cfg.hnswEfSearch,
		AsyncQueueCapacity: cfg.asyncQueueCapacity,
	}
	if cfg.indexType == IndexProximityGraph {
		engCfg.IndexType = engine.IndexProximityGraph
	}

	eng, err := engine.Open(dir, engCfg)
	if err != nil {
		return nil, newError("open", KindCorruptLog, err)
	}

	cfg.logger.InfoContext(context.Background(), "database opened", "dir", dir)
	return &DB{eng: eng, cfg: cfg}, nil
}

func ensureVersionFile(dir string) error {
	path := filepath.Join(dir, versionFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(currentVersion), 0o644)
}

// AppendNode installs or overwrites a node record.
func (db *DB) AppendNode(n Node) error {
	start := time.Now()
	err := translate("append_node", db.eng.AppendNode(n))
	db.cfg.logger.LogAppendNode(context.Background(), n.ID, err)
	db.cfg.metrics.RecordMutation("append_node", time.Since(start), err)
	return err
}

// AddEdge appends a directed, labeled edge; both endpoints must exist.
func (db *DB) AddEdge(from, to uint64, edgeType string) error {
	start := time.Now()
	err := translate("add_edge", db.eng.AddEdge(from, to, edgeType))
	db.cfg.logger.LogAddEdge(context.Background(), from, to, edgeType, err)
	db.cfg.metrics.RecordMutation("add_edge", time.Since(start), err)
	return err
}

// SetEmbedding installs a vector for an existing node, superseding any
// prior embedding for the same id.
func (db *DB) SetEmbedding(id uint64, vector []float32) error {
	start := time.Now()
	err := translate("set_embedding", db.eng.SetEmbedding(id, vector))
	db.cfg.logger.LogSetEmbedding(context.Background(), id, len(vector), db.cfg.asyncIndexing, err)
	db.cfg.metrics.RecordMutation("set_embedding", time.Since(start), err)
	return err
}

// GetNode returns the node for id, if present.
func (db *DB) GetNode(id uint64) (Node, bool) {
	return db.eng.GetNode(id)
}

// ListNodes returns every node in insertion order.
func (db *DB) ListNodes() []Node {
	return db.eng.ListNodes()
}

// Neighbor is one outgoing edge target from a neighbors() call.
type Neighbor struct {
	To   uint64
	Type string
}

// Neighbors returns id's outgoing edges in insertion order.
func (db *DB) Neighbors(id uint64) []Neighbor {
	ns := db.eng.Neighbors(id)
	out := make([]Neighbor, len(ns))
	for i, n := range ns {
		out[i] = Neighbor{To: n.To, Type: n.Type}
	}
	return out
}

// BFSHops runs a bounded-hop traversal from start. Returns an empty
// sequence, never an error, if start does not exist.
func (db *DB) BFSHops(start uint64, maxHops int) []BFSStep {
	return db.eng.BFSHops(start, maxHops)
}

// KNNSearch returns the k nearest nodes to query by embedding distance.
func (db *DB) KNNSearch(query []float32, k int) ([]KNNResult, error) {
	start := time.Now()
	res, err := db.eng.KNNSearch(query, k)
	err = translate("knn_search", err)
	db.cfg.logger.LogKNN(context.Background(), k, len(res), err)
	db.cfg.metrics.RecordQuery("knn_search", time.Since(start), len(res), err)
	return res, err
}

// HybridQuery fuses vector similarity with graph proximity from start,
// per the weights alpha and beta.
func (db *DB) HybridQuery(query []float32, start uint64, maxHops, k int, alpha, beta float32) ([]HybridResult, error) {
	begin := time.Now()
	res, err := db.eng.HybridQuery(query, start, maxHops, k, alpha, beta)
	err = translate("hybrid_query", err)
	db.cfg.logger.LogHybrid(context.Background(), start, maxHops, k, len(res), err)
	db.cfg.metrics.RecordQuery("hybrid_query", time.Since(begin), len(res), err)
	return res, err
}

// RecordDecision assigns the next monotonic decision id, stamps a
// timestamp, and durably records d.
func (db *DB) RecordDecision(d Decision) (Decision, error) {
	start := time.Now()
	out, err := db.eng.RecordDecision(d)
	err = translate("record_decision", err)
	db.cfg.metrics.RecordMutation("record_decision", time.Since(start), err)
	return out, err
}

// ListDecisionsForAgent returns every decision recorded for agentID, in
// insertion order.
func (db *DB) ListDecisionsForAgent(agentID string) []Decision {
	return db.eng.ListDecisionsForAgent(agentID)
}

// Stats returns the four derived counters.
func (db *DB) Stats() Stats {
	return db.eng.Stats()
}

// Flush blocks until any asynchronously enqueued embeddings have been
// installed and the WAL has been synced to stable storage.
func (db *DB) Flush() error {
	start := time.Now()
	err := translate("flush", db.eng.Flush())
	db.cfg.logger.LogFlush(context.Background(), err)
	db.cfg.metrics.RecordFlush(time.Since(start), err)
	return err
}

// Close flushes and closes the database. After Close, mutations and
// Flush return an error with Kind KindClosed; read-only queries are not
// checked and keep answering from the in-memory state.
func (db *DB) Close() error {
	return translate("close", db.eng.Close())
}

// translate maps an internal/engine sentinel error to the public Error
// type with the matching Kind. Query methods that contractually never
// fail on missing data (get_node, neighbors, bfs_hops) never call this.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case err == engine.ErrNotFound:
		return newError(op, KindNotFound, ErrNotFound)
	case err == engine.ErrDimensionMismatch:
		return newError(op, KindDimensionMismatch, ErrDimensionMismatch)
	case err == engine.ErrClosed:
		return newError(op, KindClosed, ErrClosed)
	default:
		return newError(op, KindIoError, err)
	}
}
