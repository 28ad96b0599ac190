// Package fs abstracts the file system behind the record log.
//
// [LocalFS] is the production implementation backed by the os package.
// [FaultyFS] wraps another FileSystem and injects write, sync, or close
// failures, which is how the IO error paths of the segment writer are
// exercised in tests.
//
// Operations here take no context.Context: local file IO is fast and not
// interruptible at the syscall level. Slow targets (object stores) live
// behind the blobstore interfaces instead, which are context-aware.
package fs
