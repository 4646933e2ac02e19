package engine

import (
	"sync"

	"github.com/barqdb/barq/internal/model"
)

// decisionLog is the append-only audit trail keyed by agent id, with a
// monotonically increasing id assigned at record time. All writes to it
// happen under the engine's writer lease, so its own mutex only needs to
// protect concurrent readers (list_decisions_for_agent, stats).
type decisionLog struct {
	mu      sync.RWMutex
	all     []model.Decision
	byAgent map[string][]int
	nextID  uint64
}

func newDecisionLog() *decisionLog {
	return &decisionLog{byAgent: make(map[string][]int), nextID: 1}
}

// peekNextID returns the id the next append will assign, without
// assigning it. Safe to call concurrently with readers; the caller must
// hold the writer lease to rely on the value still being current by the
// time it calls append.
func (l *decisionLog) peekNextID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID
}

// append assigns the next id to d and records it. Caller already holds
// the writer lease.
func (l *decisionLog) append(d model.Decision) model.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	d.ID = l.nextID
	l.nextID++
	l.byAgent[d.AgentID] = append(l.byAgent[d.AgentID], len(l.all))
	l.all = append(l.all, d)
	return d
}

// observe folds a replayed decision record into the log without
// reassigning its id, advancing nextID past it.
func (l *decisionLog) observe(d model.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byAgent[d.AgentID] = append(l.byAgent[d.AgentID], len(l.all))
	l.all = append(l.all, d)
	if d.ID >= l.nextID {
		l.nextID = d.ID + 1
	}
}

func (l *decisionLog) forAgent(agentID string) []model.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idxs := l.byAgent[agentID]
	out := make([]model.Decision, len(idxs))
	for i, idx := range idxs {
		out[i] = l.all[idx]
	}
	return out
}

func (l *decisionLog) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.all)
}
