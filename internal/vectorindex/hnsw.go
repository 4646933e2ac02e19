package vectorindex

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/barqdb/barq/distance"
	"github.com/barqdb/barq/internal/queue"
)

// HNSWOptions configures the proximity-graph variant.
type HNSWOptions struct {
	// M is the target out-degree per node per layer. Layer 0 allows 2*M.
	M int
	// EfConstruction is the dynamic candidate set size explored during
	// insertion.
	EfConstruction int
	// EfSearch is the dynamic candidate set size at query time. Zero
	// means "derive per query as max(k, 50)".
	EfSearch int
}

// DefaultHNSWOptions mirrors the values named in the component design:
// M=16, ef_construction=200, ef_search derived per query.
var DefaultHNSWOptions = HNSWOptions{
	M:              16,
	EfConstruction: 200,
}

type hnswNode struct {
	mu          sync.RWMutex
	vector      []float32
	layer       int
	connections [][]uint64 // connections[level] = neighbor slots at that level
}

// HNSW is the proximity-graph variant of the vector index: a layered
// small-world graph with geometric layer sampling, bidirectional linking
// via the select-neighbors heuristic, and per-node locking so concurrent
// readers always observe either the pre-insert or post-insert neighbor
// list for any node, never a partial update.
type HNSW struct {
	listMu sync.RWMutex // protects append to nodes and dim
	nodes  []*hnswNode
	dim    int

	epMu     sync.Mutex // guards ep/maxLevel transitions
	ep       uint64
	maxLevel int

	m      int
	mMax0  int
	mL     float64
	opts   HNSWOptions
}

// NewHNSW returns an empty proximity-graph index.
func NewHNSW(opts HNSWOptions) *HNSW {
	if opts.M <= 1 {
		opts.M = 2
	}
	if opts.EfConstruction <= 0 {
		opts.EfConstruction = 200
	}
	return &HNSW{
		m:     opts.M,
		mMax0: 2 * opts.M,
		mL:    1 / math.Log(float64(opts.M)),
		opts:  opts,
	}
}

func (h *HNSW) Dim() int {
	h.listMu.RLock()
	defer h.listMu.RUnlock()
	return h.dim
}

func (h *HNSW) Size() int {
	h.listMu.RLock()
	defer h.listMu.RUnlock()
	return len(h.nodes)
}

func (h *HNSW) getNode(slot uint64) *hnswNode {
	h.listMu.RLock()
	defer h.listMu.RUnlock()
	return h.nodes[slot]
}

func (h *HNSW) nodeCount() int {
	h.listMu.RLock()
	defer h.listMu.RUnlock()
	return len(h.nodes)
}

// Install inserts vec, assigns it a random layer from the geometric
// distribution with parameter mL, links it bidirectionally into every
// layer from its assigned top level down to 0, and updates the global
// entry point if the new node's layer exceeds the current maximum.
func (h *HNSW) Install(vec []float32) (uint64, error) {
	h.listMu.Lock()
	if h.dim == 0 && len(h.nodes) == 0 {
		h.dim = len(vec)
	} else if len(vec) != h.dim {
		h.listMu.Unlock()
		return 0, ErrDimensionMismatch
	}
	h.listMu.Unlock()

	vecCopy := make([]float32, len(vec))
	copy(vecCopy, vec)
	layer := int(math.Floor(-math.Log(rand.Float64()) * h.mL))

	if h.nodeCount() == 0 {
		return h.installFirst(vecCopy, layer)
	}

	node := &hnswNode{
		vector:      vecCopy,
		layer:       layer,
		connections: make([][]uint64, layer+1),
	}

	epSlot, topLevel := h.entryPoint()
	curSlot, curDist := h.greedyDescend(vecCopy, epSlot, topLevel, layer+1)

	connections := make([][]uint64, layer+1)
	for level := min(layer, topLevel); level >= 0; level-- {
		candidates := h.searchLayer(vecCopy, curSlot, curDist, h.opts.EfConstruction, level)
		selected := selectNeighborsHeuristic(h, vecCopy, candidates, h.m)
		connections[level] = selected
		if len(candidates) > 0 {
			curSlot, curDist = candidates[0].Slot, candidates[0].Dist
		}
	}
	node.connections = connections

	h.listMu.Lock()
	slot := uint64(len(h.nodes))
	h.nodes = append(h.nodes, node)
	h.listMu.Unlock()

	for level := min(layer, topLevel); level >= 0; level-- {
		for _, neighbor := range connections[level] {
			h.link(neighbor, slot, level)
		}
	}

	h.epMu.Lock()
	if layer > h.maxLevel {
		h.ep = slot
		h.maxLevel = layer
	}
	h.epMu.Unlock()

	return slot, nil
}

func (h *HNSW) installFirst(vec []float32, layer int) (uint64, error) {
	node := &hnswNode{vector: vec, layer: layer, connections: make([][]uint64, layer+1)}
	h.listMu.Lock()
	h.nodes = append(h.nodes, node)
	h.listMu.Unlock()
	h.epMu.Lock()
	h.ep = 0
	h.maxLevel = layer
	h.epMu.Unlock()
	return 0, nil
}

func (n *hnswNode) vectorSnapshot() []float32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.vector
}

func (n *hnswNode) connectionsAt(level int) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if level >= len(n.connections) {
		return nil
	}
	return n.connections[level]
}

func (h *HNSW) entryPoint() (slot uint64, topLevel int) {
	h.epMu.Lock()
	slot, topLevel = h.ep, h.maxLevel
	h.epMu.Unlock()
	return slot, topLevel
}

// greedyDescend walks from (epSlot, topLevel) down to stopAbove, at each
// level repeatedly stepping to the closest neighbor until no improvement
// is found, exactly as the construction-time single-path descent of the
// HNSW algorithm.
func (h *HNSW) greedyDescend(query []float32, epSlot uint64, topLevel, stopAbove int) (uint64, float32) {
	cur := epSlot
	curDist := distance.SquaredL2(query, h.getNode(cur).vectorSnapshot())

	for level := topLevel; level >= stopAbove; level-- {
		changed := true
		for changed {
			changed = false
			for _, n := range h.getNode(cur).connectionsAt(level) {
				d := distance.SquaredL2(query, h.getNode(n).vectorSnapshot())
				if d < curDist {
					cur, curDist = n, d
					changed = true
				}
			}
		}
	}
	return cur, curDist
}

// candidate is one (slot, distance-to-reference-point) pair produced by
// searchLayer, kept distinct from Result because the reference point may
// be a query vector (search) or a node's own vector (neighbor pruning).
type candidate struct {
	Slot uint64
	Dist float32
}

// searchLayer runs a best-first search at level, seeded from (epSlot,
// epDist), maintaining a candidate frontier (min-heap) and a result set
// bounded to ef (max-heap), and returns the results ordered by
// increasing distance to ref.
func (h *HNSW) searchLayer(ref []float32, epSlot uint64, epDist float32, ef int, level int) []candidate {
	visited := bitset.New(uint(h.nodeCount()))
	visited.Set(uint(epSlot))

	candidates := queue.NewMin()
	candidates.PushItem(epSlot, epDist)

	top := queue.NewMax()
	top.PushItem(epSlot, epDist)

	for candidates.Len() > 0 {
		lowerBound := top.PeekItem().Distance
		c := candidates.PopItem()
		if c.Distance > lowerBound {
			break
		}

		for _, n := range h.getNode(c.Slot).connectionsAt(level) {
			if visited.Test(uint(n)) {
				continue
			}
			visited.Set(uint(n))

			d := distance.SquaredL2(ref, h.getNode(n).vectorSnapshot())
			if top.Len() < ef {
				top.PushItem(n, d)
				candidates.PushItem(n, d)
			} else if d < top.PeekItem().Distance {
				top.PopItem()
				top.PushItem(n, d)
				candidates.PushItem(n, d)
			}
		}
	}

	out := make([]candidate, 0, top.Len())
	for top.Len() > 0 {
		item := top.PopItem()
		out = append(out, candidate{Slot: item.Slot, Dist: item.Distance})
	}
	// top is a max-heap; popped order is worst-first, so reverse.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// selectNeighborsHeuristic is the standard HNSW-family diversification
// heuristic: scanning candidates closest-to-ref first, a candidate is
// kept only if it is closer to ref than to every neighbor already
// selected — a candidate that is more similar to an existing selection
// than to ref itself is redundant. Scanning stops adding once M are kept;
// if fewer than M were kept after all candidates, the remaining slots are
// filled with the closest leftovers.
func selectNeighborsHeuristic(h *HNSW, ref []float32, candidates []candidate, m int) []uint64 {
	if len(candidates) <= m {
		out := make([]uint64, len(candidates))
		for i, c := range candidates {
			out[i] = c.Slot
		}
		return out
	}

	type vecCandidate struct {
		candidate
		vec []float32
	}
	pool := make([]vecCandidate, len(candidates))
	for i, c := range candidates {
		pool[i] = vecCandidate{candidate: c, vec: h.getNode(c.Slot).vectorSnapshot()}
	}

	selected := make([]vecCandidate, 0, m)
	var leftover []vecCandidate
	for _, c := range pool {
		if len(selected) >= m {
			leftover = append(leftover, c)
			continue
		}
		keep := true
		for _, s := range selected {
			if distance.SquaredL2(s.vec, c.vec) < c.Dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			leftover = append(leftover, c)
		}
	}
	for len(selected) < m && len(leftover) > 0 {
		selected = append(selected, leftover[0])
		leftover = leftover[1:]
	}

	out := make([]uint64, len(selected))
	for i, s := range selected {
		out[i] = s.Slot
	}
	return out
}

// link adds the reverse edge neighborSlot -> newSlot at level (the new
// node already lists neighborSlot), pruning neighborSlot's connection list back to its layer cap via the
// same heuristic used at insertion time if it grows past the cap.
func (h *HNSW) link(neighborSlot, newSlot uint64, level int) {
	n := h.getNode(neighborSlot)
	cap := h.m
	if level == 0 {
		cap = h.mMax0
	}

	n.mu.Lock()
	for level >= len(n.connections) {
		n.connections = append(n.connections, nil)
	}
	n.connections[level] = append(n.connections[level], newSlot)
	grown := len(n.connections[level]) > cap
	conns := append([]uint64(nil), n.connections[level]...)
	nVec := append([]float32(nil), n.vector...)
	n.mu.Unlock()

	if !grown {
		return
	}

	ranked := make([]candidate, len(conns))
	for i, slot := range conns {
		ranked[i] = candidate{Slot: slot, Dist: distance.SquaredL2(nVec, h.getNode(slot).vectorSnapshot())}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Dist < ranked[j].Dist })
	pruned := selectNeighborsHeuristic(h, nVec, ranked, cap)

	n.mu.Lock()
	n.connections[level] = pruned
	n.mu.Unlock()
}

// KNN returns the k nearest installed vectors to query by squared L2
// distance, via greedy descent to layer 0 followed by a best-first
// search with the configured (or per-query derived) ef_search.
func (h *HNSW) KNN(query []float32, k int) []Result {
	if k <= 0 || h.nodeCount() == 0 {
		return nil
	}

	ef := h.opts.EfSearch
	if ef <= 0 {
		ef = max(k, 50)
	}

	h.epMu.Lock()
	epSlot, topLevel := h.ep, h.maxLevel
	h.epMu.Unlock()

	curSlot, curDist := h.greedyDescend(query, epSlot, topLevel, 1)
	results := h.searchLayer(query, curSlot, curDist, ef, 0)

	out := make([]Result, 0, min(k, len(results)))
	for _, c := range results {
		out = append(out, Result{Slot: c.Slot, Distance: c.Dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Slot < out[j].Slot
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
