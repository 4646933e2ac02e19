package vectorindex

import (
	"sort"
	"sync"

	"github.com/barqdb/barq/distance"
	"github.com/barqdb/barq/internal/queue"
)

// Flat is the brute-force variant: an exact linear scan over every
// installed vector, maintaining a bounded max-heap of size k during the
// scan so KNN never sorts the full population.
type Flat struct {
	mu   sync.RWMutex
	dim  int
	vecs [][]float32
}

// NewFlat returns an empty brute-force index.
func NewFlat() *Flat {
	return &Flat{}
}

func (f *Flat) Install(vec []float32) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dim == 0 && len(f.vecs) == 0 {
		f.dim = len(vec)
	} else if len(vec) != f.dim {
		return 0, ErrDimensionMismatch
	}
	slot := uint64(len(f.vecs))
	f.vecs = append(f.vecs, vec)
	return slot, nil
}

func (f *Flat) KNN(query []float32, k int) []Result {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.vecs) == 0 {
		return nil
	}

	// Bounded max-heap of size k: push every candidate, and once the
	// heap holds k items, evict the current worst whenever a closer
	// candidate arrives. This keeps the working set at O(k) instead of
	// sorting all len(vecs) candidates.
	pq := queue.NewMax()
	for slot, v := range f.vecs {
		d := distance.SquaredL2(query, v)
		if pq.Len() < k {
			pq.PushItem(uint64(slot), d)
			continue
		}
		// Candidates arrive in increasing slot order, so a tie with the
		// current worst always belongs to a strictly larger slot and
		// must lose the tie-break; only a strict improvement evicts.
		if worst := pq.PeekItem(); d < worst.Distance {
			pq.PopItem()
			pq.PushItem(uint64(slot), d)
		}
	}

	out := make([]Result, 0, pq.Len())
	for pq.Len() > 0 {
		item := pq.PopItem()
		out = append(out, Result{Slot: item.Slot, Distance: item.Distance})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Slot < out[j].Slot
	})
	return out
}

func (f *Flat) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vecs)
}

func (f *Flat) Dim() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}
