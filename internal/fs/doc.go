// Package fs abstracts the handful of filesystem operations wal.Open
// needs — open, stat, truncate — behind an interface, so tests can inject
// I/O failures without a real disk.
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package, exposed
//     as [Default].
//   - [FaultyFS]: wraps another FileSystem and fails writes or syncs on
//     matching files, per installed [Fault] rules.
//
// # Usage
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("wal.log", fs.Fault{FailOnSync: true})
//	// pass ffs as wal.Options.FS
//
// # Design notes
//
// No context.Context parameters: filesystem calls here are local syscalls,
// fast and non-interruptible at that level, so cancellation would add
// nothing.
package fs
