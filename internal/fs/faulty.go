package fs

import (
	"errors"
	"os"
	"sync"
)

// ErrInjected is the error returned by injected faults unless a Fault
// carries its own error.
var ErrInjected = errors.New("injected fault")

// Fault describes the failure behavior for files matching a rule.
type Fault struct {
	// FailAfterBytes fails writes once this many bytes have been written
	// to the file. -1 disables the limit.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects failures per file.
type FaultyFS struct {
	inner FileSystem

	mu    sync.Mutex
	fault Fault
}

// NewFaultyFS wraps inner (Default if nil) with no active fault.
func NewFaultyFS(inner FileSystem) *FaultyFS {
	if inner == nil {
		inner = Default
	}
	return &FaultyFS{
		inner: inner,
		fault: Fault{FailAfterBytes: -1},
	}
}

// SetFault installs the fault applied to files opened afterwards.
func (f *FaultyFS) SetFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.FailAfterBytes == 0 {
		fault.FailAfterBytes = -1
	}
	f.fault = fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.inner.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	fault := f.fault
	f.mu.Unlock()
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error                     { return f.inner.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error)        { return f.inner.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.inner.MkdirAll(path, perm) }
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error)   { return f.inner.ReadDir(name) }

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.fault.FailAfterBytes >= 0 && f.written+int64(len(p)) > f.fault.FailAfterBytes {
		return 0, f.fault.err()
	}
	n, err := f.File.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *faultyFile) Sync() error {
	if f.fault.FailOnSync {
		return f.fault.err()
	}
	return f.File.Sync()
}

func (f *faultyFile) Close() error {
	if f.fault.FailOnClose {
		f.File.Close()
		return f.fault.err()
	}
	return f.File.Close()
}
