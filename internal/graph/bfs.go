package graph

// Step is one entry in a bounded-hop traversal's emission order.
type Step struct {
	ID          uint64
	Hop         int
	HasPred     bool
	Predecessor uint64
}

// BFS runs a bounded-hop breadth-first traversal from start over adj,
// visiting every node reachable within maxHops hops exactly once. If
// start has no outgoing or incoming presence in adj (i.e. it was never
// added as an edge source, or the caller never checked it exists as a
// node), BFS still emits it at hop 0 — existence of the start node as a
// graph entity is the caller's responsibility to check first; BFS itself
// only ever refuses to visit nodes that are not reachable.
func BFS(adj *Adjacency, start uint64, maxHops int) []Step {
	visited := map[uint64]struct{}{start: {}}
	steps := []Step{{ID: start, Hop: 0, HasPred: false}}

	frontier := []uint64{start}
	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []uint64
		for _, id := range frontier {
			for _, n := range adj.Neighbors(id) {
				if _, seen := visited[n.To]; seen {
					continue
				}
				visited[n.To] = struct{}{}
				steps = append(steps, Step{ID: n.To, Hop: hop, HasPred: true, Predecessor: id})
				next = append(next, n.To)
			}
		}
		frontier = next
	}
	return steps
}

// Path reconstructs the sequence of node ids from start to target using
// the predecessor chain recorded in steps. Returns nil if target was not
// visited by the traversal that produced steps.
func Path(steps []Step, target uint64) []uint64 {
	byID := make(map[uint64]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	s, ok := byID[target]
	if !ok {
		return nil
	}

	var rev []uint64
	for {
		rev = append(rev, s.ID)
		if !s.HasPred {
			break
		}
		s = byID[s.Predecessor]
	}

	path := make([]uint64, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}
