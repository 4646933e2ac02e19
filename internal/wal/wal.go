// Package wal implements the write-ahead log: a CRC32C-framed, append-only
// sequence of records that backs every mutation the engine makes. Replay
// silently truncates a torn trailing record left by a crash mid-Append,
// but fails to open if it finds a corrupt record with valid frame bytes
// still following it elsewhere in the file.
package wal

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/barqdb/barq/internal/fs"
)

// ErrClosed is returned by Append/Sync once the WAL has been closed.
var ErrClosed = errors.New("wal: closed")

// CorruptRecordError is returned by Open when replay finds a record that
// is not simply a torn trailing write from a crash mid-Append — a full
// frame's worth of bytes was present but failed to decode. Offset is the
// byte position where that record begins.
type CorruptRecordError struct {
	Offset int64
	Err    error
}

func (e *CorruptRecordError) Error() string {
	return "wal: corrupt record at offset " + strconv.FormatInt(e.Offset, 10) + ": " + e.Err.Error()
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// WAL is a single append-only log file. It is safe for concurrent Append
// calls to be serialized by the caller's own writer lease; WAL itself does
// not lock, matching the engine's single-writer contract.
type WAL struct {
	fsys       fs.FileSystem
	file       fs.File
	path       string
	syncWrites bool
	closed     bool
}

// Options controls how Open behaves.
type Options struct {
	// FS is the filesystem to use. Defaults to fs.Default.
	FS fs.FileSystem
	// SyncWrites, if true, fsyncs after every Append before it returns,
	// so a crash immediately after a successful Append cannot lose the
	// record. If false, Append is durable only up to the OS page cache.
	SyncWrites bool
}

// Open opens (creating if necessary) the log file at path and replays it,
// invoking fn once per valid record found, in file order. A torn trailing
// record (the file runs out of bytes partway through it, as a crash
// mid-Append leaves behind) is dropped silently, and the log is
// positioned for appending right after the last good record. A corrupt
// record with further bytes still present after it is never silently
// discarded — Open fails with a *CorruptRecordError naming the byte
// offset of the first unreadable record.
func Open(path string, opts Options, fn func(*Record) error) (*WAL, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.Default
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	validEnd, err := replay(f, fn)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := truncateTrailingGarbage(fsys, path, f, validEnd); err != nil {
		f.Close()
		return nil, err
	}

	return &WAL{
		fsys:       fsys,
		file:       f,
		path:       path,
		syncWrites: opts.SyncWrites,
	}, nil
}

// replay reads every record from the start of f, calling fn for each one,
// and returns the byte offset immediately after the last successfully
// decoded record.
//
// Only io.EOF/io.ErrUnexpectedEOF — meaning the file physically ran out
// of bytes partway through a frame — are treated as the torn tail of a
// crash mid-Append and truncated silently. Every other decode failure
// (ErrInvalidCRC, ErrInvalidKind, ErrRecordTooBig, or a byteReader
// ErrShortRead from a field length that overruns an otherwise fully-read
// payload) can only happen once a complete frame was already read from
// disk, meaning further valid records may still follow it; replay treats
// that as fatal corruption rather than silently discarding the rest of
// the file.
func replay(f fs.File, fn func(*Record) error) (int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	br := bufio.NewReader(f)

	var offset int64
	for {
		rec, n, err := Decode(br)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Torn write: stop here, keep everything decoded so far.
				return offset, nil
			}
			return offset, &CorruptRecordError{Offset: offset, Err: err}
		}
		offset += n
		if fn != nil {
			if err := fn(rec); err != nil {
				return offset, err
			}
		}
	}
}

// truncateTrailingGarbage drops any bytes after the last valid record
// (e.g. a half-written record from a crash mid-Append) and repositions the
// file offset for subsequent appends.
func truncateTrailingGarbage(fsys fs.FileSystem, path string, f fs.File, validEnd int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > validEnd {
		if err := fsys.Truncate(path, validEnd); err != nil {
			return err
		}
	}
	_, err = f.Seek(validEnd, io.SeekStart)
	return err
}

// Append writes rec to the end of the log. If Options.SyncWrites was set,
// Append does not return until the record has been fsynced.
func (w *WAL) Append(rec *Record) error {
	if w.closed {
		return ErrClosed
	}
	if err := rec.Encode(w.file); err != nil {
		return err
	}
	if w.syncWrites {
		return w.file.Sync()
	}
	return nil
}

// Sync flushes any buffered data to stable storage regardless of the
// SyncWrites option. Used by flush() to guarantee durability of records
// appended under a non-syncing configuration before the call returns.
func (w *WAL) Sync() error {
	if w.closed {
		return ErrClosed
	}
	return w.file.Sync()
}

// Close closes the underlying file. Further Append/Sync calls return
// ErrClosed.
func (w *WAL) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
