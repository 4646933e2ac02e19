package fs

import (
	"io"
	"os"
)

// File is the log file handle the WAL reads and appends through.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem is the seam wal.Open goes through to obtain, stat, and
// truncate its log file. It is deliberately narrow: the WAL never
// renames, removes, or lists directories, so those never made it in.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
	Truncate(name string, size int64) error
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (LocalFS) Stat(name string) (os.FileInfo, error)  { return os.Stat(name) }
func (LocalFS) Truncate(name string, size int64) error { return os.Truncate(name, size) }

// Default is the filesystem WAL.Open uses unless Options.FS overrides it.
var Default FileSystem = LocalFS{}
