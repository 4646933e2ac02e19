package wal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/barqdb/barq/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Record{
		{
			Kind: KindNodeUpsert, NodeID: 1, Label: "agent-fact",
			Embedding: []float32{0.1, 0.2, 0.3}, AgentID: "agent-1",
			RuleTags: []string{"rule-a", "rule-b"}, CreatedAt: time.Unix(1000, 0).UTC(),
		},
		{Kind: KindEdgeAdd, From: 1, To: 2, Type: "depends_on"},
		{Kind: KindEmbeddingSet, NodeID: 1, Embedding: []float32{1, 2, 3, 4}},
		{
			Kind: KindDecision, DecisionID: 7, AgentID: "agent-1", Root: 1,
			Path: []uint64{1, 2, 3}, Score: 0.87, Notes: "chose shortest path",
			CreatedAt: time.Unix(2000, 0).UTC(),
		},
		{Kind: KindNodeUpsert, NodeID: 2, Label: "no-embedding"},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, want.Encode(&buf))

		got, n, err := Decode(&buf)
		require.NoError(t, err)
		assert.Greater(t, n, int64(0))
		assert.Equal(t, want, got)
	}
}

func TestWALAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, Options{}, nil)
	require.NoError(t, err)

	records := []*Record{
		{Kind: KindNodeUpsert, NodeID: 1, Label: "a"},
		{Kind: KindEdgeAdd, From: 1, To: 2, Type: "rel"},
		{Kind: KindEmbeddingSet, NodeID: 1, Embedding: []float32{0.5, 0.5}},
	}
	for _, r := range records {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())

	var replayed []*Record
	w2, err := Open(path, Options{}, func(r *Record) error {
		replayed = append(replayed, r)
		return nil
	})
	require.NoError(t, err)
	defer w2.Close()

	require.Len(t, replayed, len(records))
	for i, r := range records {
		assert.Equal(t, r, replayed[i])
	}
}

func TestWALReplayTruncatesCorruptTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(&Record{Kind: KindNodeUpsert, NodeID: 1, Label: "good"}))
	require.NoError(t, w.Close())

	info, err := fs.Default.Stat(path)
	require.NoError(t, err)
	goodSize := info.Size()

	// Append a second record, then truncate mid-write to simulate a crash.
	raw, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	require.NoError(t, (&Record{Kind: KindNodeUpsert, NodeID: 2, Label: "partial"}).Encode(raw))
	require.NoError(t, raw.Close())
	require.NoError(t, fs.Default.Truncate(path, goodSize+6))

	var replayed []*Record
	w2, err := Open(path, Options{}, func(r *Record) error {
		replayed = append(replayed, r)
		return nil
	})
	require.NoError(t, err)
	defer w2.Close()

	require.Len(t, replayed, 1)
	assert.Equal(t, uint64(1), replayed[0].NodeID)

	// The WAL must now be positioned right after the truncated record so a
	// fresh append does not leave the corrupt bytes behind it.
	require.NoError(t, w2.Append(&Record{Kind: KindNodeUpsert, NodeID: 3, Label: "fresh"}))
	require.NoError(t, w2.Close())

	replayed = nil
	w3, err := Open(path, Options{}, func(r *Record) error {
		replayed = append(replayed, r)
		return nil
	})
	require.NoError(t, err)
	defer w3.Close()
	require.Len(t, replayed, 2)
	assert.Equal(t, uint64(1), replayed[0].NodeID)
	assert.Equal(t, uint64(3), replayed[1].NodeID)
}

func TestWALReplayFailsFatallyOnMidFileCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(&Record{Kind: KindNodeUpsert, NodeID: 1, Label: "good"}))
	firstRecordEnd := tellSize(t, path)
	require.NoError(t, w.Append(&Record{Kind: KindNodeUpsert, NodeID: 2, Label: "also-good"}))
	require.NoError(t, w.Close())

	// Flip a byte inside the first record's payload (well within the
	// file, with a fully intact second record still following it).
	raw, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = raw.WriteAt([]byte{0xFF}, firstRecordEnd-1)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = Open(path, Options{}, func(r *Record) error { return nil })
	require.Error(t, err)
	var corrupt *CorruptRecordError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, int64(0), corrupt.Offset)
}

func tellSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestWALAppendSurfacesIOError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	ffs := fs.NewFaultyFS(fs.Default)
	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: 4})

	w, err := Open(path, Options{FS: ffs}, nil)
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(&Record{Kind: KindNodeUpsert, NodeID: 1, Label: "too big to fit in four bytes"})
	assert.Error(t, err)
}

func TestWALSyncWritesOption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	ffs := fs.NewFaultyFS(fs.Default)
	ffs.AddRule("wal.log", fs.Fault{FailOnSync: true})

	w, err := Open(path, Options{FS: ffs, SyncWrites: true}, nil)
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(&Record{Kind: KindNodeUpsert, NodeID: 1, Label: "x"})
	assert.Error(t, err, "sync_writes must fail the append when fsync fails")
}
