package engine

import (
	"sort"

	"github.com/barqdb/barq/internal/graph"
	"github.com/barqdb/barq/internal/model"
)

// BFSHops runs a bounded-hop traversal from start. If start does not
// exist as a node, it returns an empty sequence, never an error.
func (e *Engine) BFSHops(start uint64, maxHops int) []model.BFSStep {
	if _, ok := e.nodes.Get(start); !ok {
		return nil
	}
	steps := graph.BFS(e.adj, start, maxHops)
	out := make([]model.BFSStep, len(steps))
	for i, s := range steps {
		out[i] = model.BFSStep{ID: s.ID, Hop: s.Hop, HasPred: s.HasPred, Predecessor: s.Predecessor}
	}
	return out
}

// KNNSearch runs a k-nearest-neighbor query, filtering out any physical
// slot superseded by a later set_embedding before translating results
// to node ids. If filtering drops results below k, KNNSearch does not
// re-query; see spec.md §4.7.
func (e *Engine) KNNSearch(query []float32, k int) ([]model.KNNResult, error) {
	if e.embedDim != 0 && len(query) != e.embedDim {
		return nil, ErrDimensionMismatch
	}

	raw := e.vec.KNN(query, k)
	out := make([]model.KNNResult, 0, len(raw))
	for _, r := range raw {
		id, ok := e.embed.idOf(r.Slot)
		if !ok {
			continue
		}
		out = append(out, model.KNNResult{ID: id, Distance: r.Distance})
	}
	return out, nil
}

// HybridQuery fuses vector similarity and graph proximity, per
// spec.md §4.7: intersect the BFS-visited set with an oversampled kNN
// candidate set, normalize vector distance within that intersection,
// and rank by alpha*(1-normDist) + beta*(1/(1+graphDist)).
func (e *Engine) HybridQuery(query []float32, start uint64, maxHops, k int, alpha, beta float32) ([]model.HybridResult, error) {
	if e.embedDim != 0 && len(query) != e.embedDim {
		return nil, ErrDimensionMismatch
	}
	if _, ok := e.nodes.Get(start); !ok {
		return nil, nil
	}

	steps := graph.BFS(e.adj, start, maxHops)
	if len(steps) == 0 {
		return nil, nil
	}

	kPrime := 4 * k
	if kPrime < 50 {
		kPrime = 50
	}
	raw := e.vec.KNN(query, kPrime)

	vecDist := make(map[uint64]float32, len(raw))
	for _, r := range raw {
		id, ok := e.embed.idOf(r.Slot)
		if !ok {
			continue
		}
		vecDist[id] = r.Distance
	}

	type cand struct {
		id       uint64
		vecDist  float32
		graphHop int
		path     []uint64
	}

	var candidates []cand
	var maxVecDist float32
	for _, s := range steps {
		vd, ok := vecDist[s.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, cand{id: s.ID, vecDist: vd, graphHop: s.Hop})
		if vd > maxVecDist {
			maxVecDist = vd
		}
	}

	out := make([]model.HybridResult, 0, len(candidates))
	for _, c := range candidates {
		normDist := float32(0)
		if maxVecDist != 0 {
			normDist = c.vecDist / maxVecDist
		}
		score := alpha*(1-normDist) + beta*(1/(1+float32(c.graphHop)))
		out = append(out, model.HybridResult{
			ID:             c.id,
			Score:          score,
			VectorDistance: c.vecDist,
			GraphDistance:  c.graphHop,
			Path:           graph.Path(steps, c.id),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}

	return out, nil
}
