package barq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, opts ...Option) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenWritesVersionFile(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	require.NoError(t, err)
	assert.Equal(t, currentVersion, string(data))
}

func TestCrashRecoveryEndToEnd(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, db.AppendNode(Node{ID: 1, Label: "a"}))
	require.NoError(t, db.AppendNode(Node{ID: 2, Label: "b"}))
	require.NoError(t, db.AppendNode(Node{ID: 3, Label: "c"}))
	require.NoError(t, db.AddEdge(1, 2, "K"))
	require.NoError(t, db.SetEmbedding(1, []float32{1, 0, 0}))
	require.NoError(t, db.Close())

	db2, err := Open(dir)
	require.NoError(t, err)
	defer db2.Close()

	stats := db2.Stats()
	assert.Equal(t, Stats{NodeCount: 3, EdgeCount: 1, EmbeddingCount: 1, DecisionCount: 0}, stats)

	neighbors := db2.Neighbors(1)
	require.Len(t, neighbors, 1)
	assert.Equal(t, Neighbor{To: 2, Type: "K"}, neighbors[0])

	res, err := db2.KNNSearch([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(1), res[0].ID)
}

func TestDecisionAuditLogEndToEnd(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.AppendNode(Node{ID: 1}))
	require.NoError(t, db.AppendNode(Node{ID: 2}))
	require.NoError(t, db.AddEdge(1, 2, "next"))

	d1, err := db.RecordDecision(Decision{AgentID: "agent-1", Root: 1, Path: []uint64{1, 2}, Score: 0.9})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d1.ID)
	assert.False(t, d1.CreatedAt.IsZero())

	d2, err := db.RecordDecision(Decision{AgentID: "agent-1", Root: 1, Path: []uint64{1}, Score: 0.5})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), d2.ID)

	list := db.ListDecisionsForAgent("agent-1")
	require.Len(t, list, 2)
	assert.Equal(t, d1.ID, list[0].ID)
	assert.Equal(t, d2.ID, list[1].ID)
}

func TestAsyncIndexingFlushMakesSearchable(t *testing.T) {
	db := openTest(t, WithAsyncIndexing(true), WithAsyncQueueCapacity(2))

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, db.AppendNode(Node{ID: i}))
	}
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, db.SetEmbedding(i, []float32{float32(i)}))
	}
	require.NoError(t, db.Flush())

	res, err := db.KNNSearch([]float32{3}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(3), res[0].ID)
}

func TestProximityGraphIndexSelectable(t *testing.T) {
	db := openTest(t, WithIndexType(IndexProximityGraph), WithHNSWParams(8, 64))

	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, db.AppendNode(Node{ID: i}))
		require.NoError(t, db.SetEmbedding(i, []float32{float32(i), float32(i)}))
	}

	res, err := db.KNNSearch([]float32{10, 10}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(10), res[0].ID)
}

func TestSetEmbeddingDimensionMismatchReturnsTypedError(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.AppendNode(Node{ID: 1}))
	require.NoError(t, db.SetEmbedding(1, []float32{1, 2, 3}))

	err := db.SetEmbedding(1, []float32{1, 2})
	require.Error(t, err)
	assert.Equal(t, KindDimensionMismatch, ErrorKind(err))
}

func TestAddEdgeUnknownNodeReturnsNotFound(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.AppendNode(Node{ID: 1}))

	err := db.AddEdge(1, 99, "x")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, ErrorKind(err))
}

func TestOperationsAfterCloseReturnClosedError(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = db.AppendNode(Node{ID: 1})
	require.Error(t, err)
	assert.Equal(t, KindClosed, ErrorKind(err))
}

func TestHybridQueryEndToEnd(t *testing.T) {
	db := openTest(t)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, db.AppendNode(Node{ID: i}))
	}
	require.NoError(t, db.AddEdge(1, 2, ""))
	require.NoError(t, db.AddEdge(2, 3, ""))
	require.NoError(t, db.AddEdge(1, 5, ""))

	onehot := func(pos int) []float32 {
		v := make([]float32, 5)
		v[pos] = 1
		return v
	}
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, db.SetEmbedding(i, onehot(int(i)-1)))
	}

	res, err := db.HybridQuery(onehot(1), 1, 2, 3, 0.5, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, uint64(2), res[0].ID)
}

func TestBFSHopsEndToEnd(t *testing.T) {
	db := openTest(t)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, db.AppendNode(Node{ID: i}))
	}
	require.NoError(t, db.AddEdge(1, 2, ""))
	require.NoError(t, db.AddEdge(2, 3, ""))

	steps := db.BFSHops(1, 1)
	require.Len(t, steps, 2)
	assert.Equal(t, uint64(1), steps[0].ID)
	assert.Equal(t, uint64(2), steps[1].ID)
}
