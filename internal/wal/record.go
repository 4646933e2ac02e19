package wal

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"math"
	"time"
)

// crc32cTable is the Castagnoli polynomial table, matching the checksum
// the segment writers use for their own block checksums.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Kind identifies the type of WAL record, per the record table in
// spec.md §4.1.
type Kind uint8

const (
	KindNodeUpsert   Kind = 1
	KindEdgeAdd      Kind = 2
	KindEmbeddingSet Kind = 3
	KindDecision     Kind = 4
)

var (
	ErrInvalidCRC   = errors.New("wal: invalid record checksum")
	ErrInvalidKind  = errors.New("wal: invalid record kind")
	ErrShortRead    = errors.New("wal: short read in record")
	ErrRecordTooBig = errors.New("wal: record exceeds maximum size")
)

// maxRecordPayload guards against a corrupt length field causing an
// unbounded allocation during replay.
const maxRecordPayload = 64 * 1024 * 1024

// Record is a single self-delimiting WAL entry. Only the fields relevant
// to Kind are populated.
type Record struct {
	Kind Kind

	// NODE_UPSERT
	NodeID    uint64
	Label     string
	Embedding []float32 // also used by EMBEDDING_SET
	AgentID   string
	RuleTags  []string
	CreatedAt time.Time // also used by DECISION

	// EDGE_ADD
	From uint64
	To   uint64
	Type string

	// EMBEDDING_SET reuses NodeID + Embedding above.

	// DECISION
	DecisionID uint64
	Root       uint64
	Path       []uint64
	Score      float32
	Notes      string
}

// Encode writes the record to w as:
// [CRC32C:4][Kind:1][PayloadLen:4][Payload:PayloadLen]
// The checksum covers Kind + PayloadLen + Payload.
func (r *Record) Encode(w io.Writer) error {
	payload := r.encodePayload()
	if len(payload) > maxRecordPayload {
		return ErrRecordTooBig
	}

	header := make([]byte, 5+len(payload))
	header[0] = byte(r.Kind)
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(payload)))
	copy(header[5:], payload)

	checksum := crc32.Checksum(header, crc32cTable)

	full := make([]byte, 4+len(header))
	binary.LittleEndian.PutUint32(full[0:4], checksum)
	copy(full[4:], header)

	_, err := w.Write(full)
	return err
}

func (r *Record) encodePayload() []byte {
	buf := newByteBuilder()
	switch r.Kind {
	case KindNodeUpsert:
		buf.putUint64(r.NodeID)
		buf.putString(r.Label)
		buf.putFloat32Slice(r.Embedding)
		buf.putString(r.AgentID)
		buf.putStringSlice(r.RuleTags)
		buf.putTime(r.CreatedAt)
	case KindEdgeAdd:
		buf.putUint64(r.From)
		buf.putUint64(r.To)
		buf.putString(r.Type)
	case KindEmbeddingSet:
		buf.putUint64(r.NodeID)
		buf.putFloat32Slice(r.Embedding)
	case KindDecision:
		buf.putUint64(r.DecisionID)
		buf.putString(r.AgentID)
		buf.putUint64(r.Root)
		buf.putUint64Slice(r.Path)
		buf.putFloat32(r.Score)
		buf.putString(r.Notes)
		buf.putTime(r.CreatedAt)
	}
	return buf.bytes()
}

// Decode reads one record from r, returning the number of bytes consumed.
func Decode(r io.Reader) (*Record, int64, error) {
	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return nil, 0, err
	}

	head := make([]byte, 5)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, 4, err
	}
	kind := Kind(head[0])
	length := binary.LittleEndian.Uint32(head[1:5])
	if length > maxRecordPayload {
		return nil, 4 + 5, ErrRecordTooBig
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 4 + 5, err
	}

	check := make([]byte, 5+len(payload))
	copy(check, head)
	copy(check[5:], payload)
	if crc32.Checksum(check, crc32cTable) != checksum {
		return nil, 4 + 5 + int64(length), ErrInvalidCRC
	}

	rec := &Record{Kind: kind}
	p := newByteReader(payload)
	var err error
	switch kind {
	case KindNodeUpsert:
		rec.NodeID, err = p.uint64()
		if err == nil {
			rec.Label, err = p.string()
		}
		if err == nil {
			rec.Embedding, err = p.float32Slice()
		}
		if err == nil {
			rec.AgentID, err = p.string()
		}
		if err == nil {
			rec.RuleTags, err = p.stringSlice()
		}
		if err == nil {
			rec.CreatedAt, err = p.time()
		}
	case KindEdgeAdd:
		rec.From, err = p.uint64()
		if err == nil {
			rec.To, err = p.uint64()
		}
		if err == nil {
			rec.Type, err = p.string()
		}
	case KindEmbeddingSet:
		rec.NodeID, err = p.uint64()
		if err == nil {
			rec.Embedding, err = p.float32Slice()
		}
	case KindDecision:
		rec.DecisionID, err = p.uint64()
		if err == nil {
			rec.AgentID, err = p.string()
		}
		if err == nil {
			rec.Root, err = p.uint64()
		}
		if err == nil {
			rec.Path, err = p.uint64Slice()
		}
		if err == nil {
			rec.Score, err = p.float32()
		}
		if err == nil {
			rec.Notes, err = p.string()
		}
		if err == nil {
			rec.CreatedAt, err = p.time()
		}
	default:
		return nil, 4 + 5 + int64(length), ErrInvalidKind
	}
	if err != nil {
		return nil, 4 + 5 + int64(length), err
	}

	return rec, 4 + 5 + int64(length), nil
}

// --- little binary helpers, in the spirit of the teacher's own manual
// little-endian record codec (no reflection, no external serializer). ---

type byteBuilder struct {
	b []byte
}

func newByteBuilder() *byteBuilder { return &byteBuilder{b: make([]byte, 0, 64)} }

func (bb *byteBuilder) bytes() []byte { return bb.b }

func (bb *byteBuilder) putUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	bb.b = append(bb.b, tmp[:]...)
}

func (bb *byteBuilder) putUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	bb.b = append(bb.b, tmp[:]...)
}

func (bb *byteBuilder) putFloat32(v float32) {
	bb.putUint32(math.Float32bits(v))
}

func (bb *byteBuilder) putString(s string) {
	bb.putUint32(uint32(len(s)))
	bb.b = append(bb.b, s...)
}

func (bb *byteBuilder) putStringSlice(ss []string) {
	bb.putUint32(uint32(len(ss)))
	for _, s := range ss {
		bb.putString(s)
	}
}

func (bb *byteBuilder) putFloat32Slice(v []float32) {
	bb.putUint32(uint32(len(v)))
	for _, f := range v {
		bb.putFloat32(f)
	}
}

func (bb *byteBuilder) putUint64Slice(v []uint64) {
	bb.putUint32(uint32(len(v)))
	for _, u := range v {
		bb.putUint64(u)
	}
}

func (bb *byteBuilder) putTime(t time.Time) {
	if t.IsZero() {
		bb.putUint64(0)
		return
	}
	bb.putUint64(uint64(t.UnixNano()))
}

type byteReader struct {
	b []byte
	i int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (br *byteReader) uint32() (uint32, error) {
	if len(br.b) < br.i+4 {
		return 0, ErrShortRead
	}
	v := binary.LittleEndian.Uint32(br.b[br.i:])
	br.i += 4
	return v, nil
}

func (br *byteReader) uint64() (uint64, error) {
	if len(br.b) < br.i+8 {
		return 0, ErrShortRead
	}
	v := binary.LittleEndian.Uint64(br.b[br.i:])
	br.i += 8
	return v, nil
}

func (br *byteReader) float32() (float32, error) {
	v, err := br.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (br *byteReader) string() (string, error) {
	n, err := br.uint32()
	if err != nil {
		return "", err
	}
	if len(br.b) < br.i+int(n) {
		return "", ErrShortRead
	}
	s := string(br.b[br.i : br.i+int(n)])
	br.i += int(n)
	return s, nil
}

func (br *byteReader) stringSlice() ([]string, error) {
	n, err := br.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = br.string()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (br *byteReader) float32Slice() ([]float32, error) {
	n, err := br.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i], err = br.float32()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (br *byteReader) uint64Slice() ([]uint64, error) {
	n, err := br.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i], err = br.uint64()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (br *byteReader) time() (time.Time, error) {
	v, err := br.uint64()
	if err != nil {
		return time.Time{}, err
	}
	if v == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, int64(v)).UTC(), nil
}
