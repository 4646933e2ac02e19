// Package engine implements the orchestration layer: WAL-backed
// mutation, crash recovery, and the in-memory node store, adjacency
// index, vector index, and decision log that back the public facade.
package engine

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/barqdb/barq/internal/asyncindex"
	"github.com/barqdb/barq/internal/graph"
	"github.com/barqdb/barq/internal/model"
	"github.com/barqdb/barq/internal/vectorindex"
	"github.com/barqdb/barq/internal/wal"
)

var (
	ErrNotFound          = errors.New("engine: not found")
	ErrDimensionMismatch = errors.New("engine: dimension mismatch")
	ErrClosed            = errors.New("engine: closed")
)

const walFileName = "wal.log"

// Engine is the single process-wide mutable state object: every
// mutation acquires writeMu (the writer lease) for its full duration;
// readers use the finer-grained locks owned by each substructure.
type Engine struct {
	writeMu sync.Mutex

	wal   *wal.WAL
	nodes *graph.NodeStore
	adj   *graph.Adjacency
	vec   vectorindex.Index
	embed *embeddingMap
	dec   *decisionLog

	embedDim int // 0 until the first embedding is installed

	worker *asyncindex.Worker

	cfg    Config
	closed bool
}

// Open opens (creating if necessary) the database directory at dir,
// replaying its WAL to rebuild in-memory state before returning.
func Open(dir string, cfg Config) (*Engine, error) {
	e := &Engine{
		nodes: graph.NewNodeStore(),
		adj:   graph.NewAdjacency(),
		embed: newEmbeddingMap(),
		dec:   newDecisionLog(),
		cfg:   cfg,
	}

	switch cfg.IndexType {
	case IndexProximityGraph:
		e.vec = vectorindex.NewHNSW(vectorindex.HNSWOptions{
			M:              cfg.HNSWM,
			EfConstruction: cfg.HNSWEfConstruction,
			EfSearch:       cfg.HNSWEfSearch,
		})
	default:
		e.vec = vectorindex.NewFlat()
	}

	w, err := wal.Open(filepath.Join(dir, walFileName), wal.Options{SyncWrites: cfg.SyncWrites}, e.applyRecord)
	if err != nil {
		return nil, err
	}
	e.wal = w

	if cfg.AsyncIndexing {
		capacity := cfg.AsyncQueueCapacity
		if capacity <= 0 {
			capacity = 1024
		}
		e.worker = asyncindex.New(capacity, func(job asyncindex.Job) error {
			slot, err := e.vec.Install(job.Vector)
			if err != nil {
				return err
			}
			e.embed.set(job.NodeID, slot)
			return nil
		})
	}

	return e, nil
}

// applyRecord folds one replayed WAL record into in-memory state. It
// always installs embeddings synchronously regardless of Config's async
// setting, since replay runs before the async worker exists.
func (e *Engine) applyRecord(rec *wal.Record) error {
	switch rec.Kind {
	case wal.KindNodeUpsert:
		n := model.Node{
			ID:        rec.NodeID,
			Label:     rec.Label,
			AgentID:   rec.AgentID,
			RuleTags:  rec.RuleTags,
			CreatedAt: rec.CreatedAt,
		}
		if rec.Embedding != nil {
			n.Embedding = rec.Embedding
		}
		e.nodes.Upsert(n)
		if rec.Embedding != nil {
			return e.installEmbeddingSync(rec.NodeID, rec.Embedding)
		}
		return nil
	case wal.KindEdgeAdd:
		e.adj.AddEdge(model.Edge{From: rec.From, To: rec.To, Type: rec.Type})
		return nil
	case wal.KindEmbeddingSet:
		e.nodes.SetEmbedding(rec.NodeID, rec.Embedding)
		return e.installEmbeddingSync(rec.NodeID, rec.Embedding)
	case wal.KindDecision:
		e.dec.observe(model.Decision{
			ID:        rec.DecisionID,
			AgentID:   rec.AgentID,
			Root:      rec.Root,
			Path:      rec.Path,
			Score:     rec.Score,
			Notes:     rec.Notes,
			CreatedAt: rec.CreatedAt,
		})
		return nil
	}
	return nil
}

func (e *Engine) installEmbeddingSync(id uint64, vector []float32) error {
	slot, err := e.vec.Install(vector)
	if err != nil {
		return err
	}
	e.embed.set(id, slot)
	if e.embedDim == 0 {
		e.embedDim = len(vector)
	}
	return nil
}

// AppendNode installs or overwrites a node record, synchronously
// indexing any embedding it carries (or enqueuing it, when async
// indexing is enabled).
func (e *Engine) AppendNode(n model.Node) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if n.Embedding != nil && e.embedDim != 0 && len(n.Embedding) != e.embedDim {
		return ErrDimensionMismatch
	}

	rec := &wal.Record{
		Kind:      wal.KindNodeUpsert,
		NodeID:    n.ID,
		Label:     n.Label,
		Embedding: n.Embedding,
		AgentID:   n.AgentID,
		RuleTags:  n.RuleTags,
		CreatedAt: n.CreatedAt,
	}
	if err := e.wal.Append(rec); err != nil {
		return err
	}

	e.nodes.Upsert(n)
	if n.Embedding != nil {
		return e.dispatchEmbedding(n.ID, n.Embedding)
	}
	return nil
}

// AddEdge appends a directed edge. Both endpoints must already exist.
func (e *Engine) AddEdge(from, to uint64, edgeType string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if _, ok := e.nodes.Get(from); !ok {
		return ErrNotFound
	}
	if _, ok := e.nodes.Get(to); !ok {
		return ErrNotFound
	}

	rec := &wal.Record{Kind: wal.KindEdgeAdd, From: from, To: to, Type: edgeType}
	if err := e.wal.Append(rec); err != nil {
		return err
	}

	e.adj.AddEdge(model.Edge{From: from, To: to, Type: edgeType})
	return nil
}

// SetEmbedding installs a vector for an existing node, superseding any
// prior embedding for the same id.
func (e *Engine) SetEmbedding(id uint64, vector []float32) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if _, ok := e.nodes.Get(id); !ok {
		return ErrNotFound
	}
	if e.embedDim != 0 && len(vector) != e.embedDim {
		return ErrDimensionMismatch
	}

	rec := &wal.Record{Kind: wal.KindEmbeddingSet, NodeID: id, Embedding: vector}
	if err := e.wal.Append(rec); err != nil {
		return err
	}

	e.nodes.SetEmbedding(id, vector)
	return e.dispatchEmbedding(id, vector)
}

// dispatchEmbedding installs vector into the vector index, either
// synchronously or via the background worker depending on Config.
// Caller holds writeMu.
func (e *Engine) dispatchEmbedding(id uint64, vector []float32) error {
	if e.embedDim == 0 {
		e.embedDim = len(vector)
	}
	if e.worker != nil {
		return e.worker.Enqueue(asyncindex.Job{NodeID: id, Vector: vector})
	}
	slot, err := e.vec.Install(vector)
	if err != nil {
		return err
	}
	e.embed.set(id, slot)
	return nil
}

// RecordDecision assigns the next monotonic decision id, stamps
// CreatedAt, and durably records d.
func (e *Engine) RecordDecision(d model.Decision) (model.Decision, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.closed {
		return model.Decision{}, ErrClosed
	}

	d.CreatedAt = time.Now().UTC()
	id := e.dec.peekNextID()

	rec := &wal.Record{
		Kind:       wal.KindDecision,
		DecisionID: id,
		AgentID:    d.AgentID,
		Root:       d.Root,
		Path:       d.Path,
		Score:      d.Score,
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt,
	}
	if err := e.wal.Append(rec); err != nil {
		return model.Decision{}, err
	}

	return e.dec.append(d), nil
}

// GetNode returns the node record for id, if present.
func (e *Engine) GetNode(id uint64) (model.Node, bool) {
	return e.nodes.Get(id)
}

// ListNodes returns every node in insertion order.
func (e *Engine) ListNodes() []model.Node {
	return e.nodes.List()
}

// Neighbors returns id's outgoing edges in insertion order.
func (e *Engine) Neighbors(id uint64) []graph.Neighbor {
	return e.adj.Neighbors(id)
}

// ListDecisionsForAgent returns every decision recorded for agentID, in
// insertion order.
func (e *Engine) ListDecisionsForAgent(agentID string) []model.Decision {
	return e.dec.forAgent(agentID)
}

// Stats returns the four derived counters.
func (e *Engine) Stats() model.Stats {
	return model.Stats{
		NodeCount:      e.nodes.Len(),
		EdgeCount:      e.adj.EdgeCount(),
		EmbeddingCount: e.embed.len(),
		DecisionCount:  e.dec.len(),
	}
}

// Flush blocks until any asynchronously enqueued embeddings have been
// installed and the WAL has been synced to stable storage.
func (e *Engine) Flush() error {
	if e.worker != nil {
		if err := e.worker.Flush(); err != nil {
			return err
		}
	}
	if err := e.wal.Sync(); err != nil {
		if errors.Is(err, wal.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close drains the async worker (if any) and closes the WAL. After
// Close, mutations and Flush return ErrClosed; read-only queries are not
// checked and keep answering from the in-memory state.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	if e.closed {
		e.writeMu.Unlock()
		return nil
	}
	e.closed = true
	e.writeMu.Unlock()

	var workerErr error
	if e.worker != nil {
		workerErr = e.worker.Close()
	}
	if err := e.wal.Close(); err != nil {
		return err
	}
	return workerErr
}
