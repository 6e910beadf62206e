// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
//
// Tests can inject [FaultyFS] to make a specific record or manifest write fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("2.bin", fs.Fault{FailOnOpen: true})
//	// inject ffs into the codec or registrator under test
//
// This package does NOT take context.Context parameters. Local filesystem
// calls are not interruptible at the syscall level; remote reads go through
// the source package, which is context aware.
package fs
