package engine

import (
	"testing"

	"github.com/barqdb/barq/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, cfg Config) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCrashRecovery(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, Config{SyncWrites: true})
	require.NoError(t, err)

	require.NoError(t, e.AppendNode(model.Node{ID: 1, Label: "a"}))
	require.NoError(t, e.AppendNode(model.Node{ID: 2, Label: "b"}))
	require.NoError(t, e.AppendNode(model.Node{ID: 3, Label: "c"}))
	require.NoError(t, e.AddEdge(1, 2, "K"))
	require.NoError(t, e.SetEmbedding(1, []float32{1, 0, 0}))
	require.NoError(t, e.SetEmbedding(2, []float32{0, 1, 0}))
	require.NoError(t, e.Close()) // close without flush; nothing async here

	e2, err := Open(dir, Config{SyncWrites: false})
	require.NoError(t, err)
	defer e2.Close()

	stats := e2.Stats()
	assert.Equal(t, model.Stats{NodeCount: 3, EdgeCount: 1, EmbeddingCount: 2, DecisionCount: 0}, stats)

	neighbors := e2.Neighbors(1)
	require.Len(t, neighbors, 1)
	assert.Equal(t, uint64(2), neighbors[0].To)
	assert.Equal(t, "K", neighbors[0].Type)

	res, err := e2.KNNSearch([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(1), res[0].ID)
	assert.InDelta(t, 0, res[0].Distance, 1e-6)
}

func TestEmbeddingSupersession(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	require.NoError(t, e.AppendNode(model.Node{ID: 1, Label: "a"}))

	require.NoError(t, e.SetEmbedding(1, []float32{1, 0, 0}))
	require.NoError(t, e.SetEmbedding(1, []float32{0, 0, 1}))

	res, err := e.KNNSearch([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range res {
		// id 1 may still appear, but only through its current vector
		// [0,0,1], which lies at squared distance 2 from the query.
		if r.ID == 1 {
			assert.InDelta(t, 2, r.Distance, 1e-6, "superseded slot must not resolve back to id 1")
		}
	}

	res, err = e.KNNSearch([]float32{0, 0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(1), res[0].ID)
	assert.InDelta(t, 0, res[0].Distance, 1e-6)
}

func TestBFSTieBreakScenario(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, e.AppendNode(model.Node{ID: i}))
	}
	require.NoError(t, e.AddEdge(1, 2, ""))
	require.NoError(t, e.AddEdge(1, 3, ""))
	require.NoError(t, e.AddEdge(2, 4, ""))
	require.NoError(t, e.AddEdge(3, 4, ""))

	steps := e.BFSHops(1, 2)
	require.Len(t, steps, 4)
	order := make([]uint64, len(steps))
	for i, s := range steps {
		order[i] = s.ID
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, order)
	assert.Equal(t, uint64(2), steps[3].Predecessor)
}

func TestDecisionAuditOrderAndAgentFilter(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})

	record := func(agent string, root uint64) model.Decision {
		d, err := e.RecordDecision(model.Decision{AgentID: agent, Root: root, Path: []uint64{root}})
		require.NoError(t, err)
		return d
	}

	d1 := record("7", 1)
	record("8", 2)
	d2 := record("7", 1)
	record("8", 2)
	d3 := record("7", 1)

	list := e.ListDecisionsForAgent("7")
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{d1.ID, d2.ID, d3.ID}, []uint64{list[0].ID, list[1].ID, list[2].ID})
	assert.Less(t, list[0].ID, list[1].ID)
	assert.Less(t, list[1].ID, list[2].ID)
}

func TestAsyncFlushMakesEmbeddingsSearchable(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true, AsyncIndexing: true, AsyncQueueCapacity: 2})

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, e.AppendNode(model.Node{ID: i}))
	}
	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, e.SetEmbedding(i, []float32{float32(i), 0, 0}))
	}
	require.NoError(t, e.Flush())

	for i := uint64(1); i <= 10; i++ {
		res, err := e.KNNSearch([]float32{float32(i), 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, i, res[0].ID)
	}
}

func TestDimensionMismatchOnSetEmbedding(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	require.NoError(t, e.AppendNode(model.Node{ID: 1}))
	require.NoError(t, e.SetEmbedding(1, []float32{1, 2, 3}))

	err := e.SetEmbedding(1, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSetEmbeddingOnUnknownIDFails(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	err := e.SetEmbedding(99, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddEdgeUnknownEndpointFails(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	require.NoError(t, e.AppendNode(model.Node{ID: 1}))
	err := e.AddEdge(1, 2, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBFSOnMissingStartReturnsEmpty(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	steps := e.BFSHops(999, 5)
	assert.Empty(t, steps)
}

func TestHybridQueryRanksByVectorThenGraph(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, e.AppendNode(model.Node{ID: i}))
	}
	require.NoError(t, e.AddEdge(1, 2, ""))
	require.NoError(t, e.AddEdge(2, 3, ""))
	require.NoError(t, e.AddEdge(3, 4, ""))
	require.NoError(t, e.AddEdge(1, 5, ""))

	onehot := func(pos int) []float32 {
		v := make([]float32, 5)
		v[pos] = 1
		return v
	}
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, e.SetEmbedding(i, onehot(int(i)-1)))
	}

	results, err := e.HybridQuery(onehot(1), 1, 2, 3, 0.5, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(2), results[0].ID)
	assert.InDelta(t, 0, results[0].VectorDistance, 1e-6)
	assert.Equal(t, 1, results[0].GraphDistance)
}

func TestHybridQueryMissingStartReturnsEmpty(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	results, err := e.HybridQuery([]float32{1, 0}, 999, 2, 3, 0.5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStatsConsistency(t *testing.T) {
	e := openTest(t, Config{SyncWrites: true})
	require.NoError(t, e.AppendNode(model.Node{ID: 1}))
	require.NoError(t, e.AppendNode(model.Node{ID: 2}))
	require.NoError(t, e.AddEdge(1, 2, "x"))
	require.NoError(t, e.SetEmbedding(1, []float32{1, 2}))
	_, err := e.RecordDecision(model.Decision{AgentID: "a", Root: 1, Path: []uint64{1}})
	require.NoError(t, err)

	assert.Equal(t, model.Stats{NodeCount: 2, EdgeCount: 1, EmbeddingCount: 1, DecisionCount: 1}, e.Stats())
}
