package record

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/seglog/internal/fs"
)

// State is the lifecycle state of a segment.
type State int

const (
	// StateWriting accepts appends. At most one segment per writer is in
	// this state at any instant.
	StateWriting State = iota
	// StateFinalizing no longer accepts appends; the footer is being written.
	StateFinalizing
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWriting:
		return "writing"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// FileWriter writes one segment to one record file.
//
// Appends are expected to be serialized by the owning writer; FileWriter
// still guards its state so a Finalize racing a stray Append fails cleanly
// instead of corrupting the file.
type FileWriter struct {
	mu sync.Mutex

	file fs.File
	cw   *countingWriter
	path string

	index     uint64
	beginTime uint64
	codec     Compression

	state        State
	messageCount uint64
	rawBytes     uint64
	endTime      uint64
	channels     map[string]struct{}
}

// Create allocates the record file at FileName(base, index) and writes its
// header. fsys nil means the local file system.
func Create(fsys fs.FileSystem, base string, index uint64, beginTime uint64, codec Compression) (*FileWriter, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	path := FileName(base, index)
	file, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create record file %s: %w", path, err)
	}

	w := &FileWriter{
		file:      file,
		cw:        &countingWriter{w: bufio.NewWriter(file)},
		path:      path,
		index:     index,
		beginTime: beginTime,
		codec:     codec,
		endTime:   beginTime,
		channels:  make(map[string]struct{}),
	}

	if _, err := w.cw.Write(encodeHeader(Header{
		Version:     FormatVersion,
		Compression: codec,
		FileIndex:   index,
		BeginTime:   beginTime,
	})); err != nil {
		file.Close()
		return nil, fmt.Errorf("write record header %s: %w", path, err)
	}
	return w, nil
}

// Path returns the record file path.
func (w *FileWriter) Path() string { return w.path }

// Index returns the segment's file index.
func (w *FileWriter) Index() uint64 { return w.index }

// BeginTime returns the segment's begin time in nanoseconds.
func (w *FileWriter) BeginTime() uint64 { return w.beginTime }

// State returns the segment's lifecycle state.
func (w *FileWriter) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// MessageCount returns the number of messages appended so far.
func (w *FileWriter) MessageCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.messageCount
}

// RawBytes returns the cumulative uncompressed payload bytes appended so far.
func (w *FileWriter) RawBytes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rawBytes
}

// HasChannel reports whether metadata for the named channel has been written
// into this segment.
func (w *FileWriter) HasChannel(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.channels[name]
	return ok
}

// WriteChannel appends one channel record. Writing the same channel twice is
// a no-op: each segment records a channel's metadata at most once.
func (w *FileWriter) WriteChannel(ch Channel) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateWriting {
		return fmt.Errorf("%w: %s is %s", ErrNotWritable, w.path, w.state)
	}
	if _, ok := w.channels[ch.Name]; ok {
		return nil
	}
	if _, err := w.cw.Write(encodeChannel(ch)); err != nil {
		return fmt.Errorf("write channel record %q to %s: %w", ch.Name, w.path, err)
	}
	w.channels[ch.Name] = struct{}{}
	return nil
}

// Append writes one message record. The payload is compressed according to
// the file's codec; the raw-byte counter always accounts the uncompressed
// length so rotation thresholds are independent of the codec.
func (w *FileWriter) Append(m Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateWriting {
		return fmt.Errorf("%w: %s is %s", ErrNotWritable, w.path, w.state)
	}

	stored, compressed, err := compressPayload(w.codec, m.Payload)
	if err != nil {
		return err
	}
	var flags byte
	if compressed {
		flags |= flagCompressed
	}
	if _, err := w.cw.Write(encodeMessage(m.ChannelName, m.Timestamp, stored, flags)); err != nil {
		return fmt.Errorf("append message to %s: %w", w.path, err)
	}

	w.messageCount++
	w.rawBytes += uint64(len(m.Payload))
	if m.Timestamp > w.endTime {
		w.endTime = m.Timestamp
	}
	return nil
}

// MarkFinalizing transitions the segment out of the Writing state. Appends
// fail from this point on. Calling it on a segment that already left Writing
// is a no-op.
func (w *FileWriter) MarkFinalizing() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateWriting {
		w.state = StateFinalizing
	}
}

// Finalize writes the footer, flushes and closes the file, and transitions
// the segment to Closed. It is idempotent: after the first successful call,
// subsequent calls return nil without touching the file.
func (w *FileWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateClosed {
		return nil
	}
	w.state = StateFinalizing

	footer := Footer{
		MessageCount: w.messageCount,
		EndTime:      w.endTime,
		RawBytes:     w.rawBytes,
	}
	if _, err := w.cw.Write(encodeFooter(footer)); err != nil {
		return fmt.Errorf("write footer to %s: %w", w.path, err)
	}
	if err := w.cw.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	w.state = StateClosed
	return nil
}
