package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// errInjected is returned by a faultyFile once its rule's threshold trips.
var errInjected = errors.New("fs: injected fault")

// Fault is a rule for how a matching file should start misbehaving. It
// covers exactly the two failure modes the WAL's durability contract needs
// to be tested against: a write that runs out of room mid-record (the torn
// write a crash leaves behind), and an fsync that fails outright (so
// sync_writes must surface the failure rather than silently acknowledge).
type Fault struct {
	FailAfterBytes int64 // 0 or less disables; otherwise a write fails if it would take the file past this many bytes.
	FailOnSync     bool
}

// FaultyFS wraps a FileSystem and applies Fault rules by filename
// substring, so wal_test.go can simulate a disk that fails partway through
// an Append or a Sync without touching a real device.
type FaultyFS struct {
	fs FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS wraps fs (or Default, if nil) with fault injection.
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{fs: fs, rules: make(map[string]Fault)}
}

// AddRule installs the fault for any filename containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

func (f *FaultyFS) ruleFor(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	fault := Fault{FailAfterBytes: -1}
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	return fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fault: f.ruleFor(name)}, nil
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.fs.Stat(name) }

func (f *FaultyFS) Truncate(name string, size int64) error { return f.fs.Truncate(name, size) }

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfterBytes > 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		return 0, errInjected
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return errInjected
	}
	return ff.File.Sync()
}
