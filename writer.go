package seglog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/seglog/internal/fs"
	"github.com/hupe1980/seglog/record"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RawMessage is an externally-owned message handle: a channel name plus the
// already-serialized content. The writer stamps it with the current time on
// submission.
type RawMessage struct {
	ChannelName string
	Content     []byte
}

// Writer persists messages from many named channels into rotating,
// self-describing record files.
//
// Multiple goroutines may call WriteChannel and WriteMessage concurrently.
// Segment finalization runs on a background task so append latency is
// bounded by an in-memory write, not by file-system flush latency; at most
// one finalization is in flight at a time, and a rotation requested while
// one is still running blocks the triggering append until it completes.
type Writer struct {
	opts    Options
	fsys    fs.FileSystem
	logger  *Logger
	metrics MetricsCollector

	registry *ChannelRegistry
	progress progressCounters
	progLog  *rate.Limiter

	// finalizeSem is the single finalize slot: holding it means a segment
	// is being finalized in the background.
	finalizeSem *semaphore.Weighted
	finalizeWG  sync.WaitGroup
	archive     *archiver

	// backup is the segment currently owned by the background finalize
	// task, nil when none is in flight.
	backup atomic.Pointer[record.FileWriter]

	mu           sync.Mutex
	open         bool
	basePath     string
	active       *record.FileWriter
	fileIndex    uint64
	segmentBegin time.Time
	segmentErr   error // create failure of the successor segment, if any

	errMu  sync.Mutex
	bgErrs []error
}

// NewWriter creates a Writer. The writer is constructed closed; call Open
// to start a recording session.
func NewWriter(optFns ...func(o *Options)) *Writer {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Logger == nil {
		opts.Logger = NewLogger(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetricsCollector{}
	}
	if opts.ProgressLogInterval <= 0 {
		opts.ProgressLogInterval = DefaultOptions.ProgressLogInterval
	}

	w := &Writer{
		opts:        opts,
		fsys:        opts.FileSystem,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		registry:    NewChannelRegistry(),
		progLog:     rate.NewLimiter(rate.Every(opts.ProgressLogInterval), 1),
		finalizeSem: semaphore.NewWeighted(1),
	}
	if opts.Archive != nil {
		w.archive = newArchiver(opts.Archive, w.logger, w.metrics, opts.ArchiveConcurrency, opts.ArchiveBytesPerSec)
	}
	return w
}

// Open starts a recording session at basePath: record files are named
// basePath plus a zero-padded index suffix. Fails with ErrAlreadyOpen on an
// open writer; on any other failure the writer stays closed and Open may be
// retried.
func (w *Writer) Open(basePath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open {
		return ErrAlreadyOpen
	}
	if dir := filepath.Dir(basePath); dir != "" {
		if err := w.fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	now := time.Now()
	active, err := record.Create(w.fsys, basePath, 0, uint64(now.UnixNano()), w.opts.Compression)
	if err != nil {
		return err
	}

	// Channels registered before this session still describe its segments.
	for _, ch := range w.registry.Channels() {
		if err := active.WriteChannel(ch.toRecord()); err != nil {
			active.Finalize()
			return err
		}
	}

	w.open = true
	w.basePath = basePath
	w.active = active
	w.fileIndex = 0
	w.segmentBegin = now
	w.segmentErr = nil
	w.progress.reset(now)

	w.logger.Info("record writer opened", "base_path", basePath)
	return nil
}

// WriteChannel registers a channel and records its metadata into the active
// segment. Re-registering with identical type and descriptor succeeds
// silently; a differing registration fails with ErrChannelConflict and
// leaves the original intact.
func (w *Writer) WriteChannel(name, messageType string, schemaDescriptor []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return ErrNotOpen
	}
	ch, err := w.registry.Register(name, messageType, schemaDescriptor)
	if err != nil {
		w.logger.Warn("channel registration rejected", "channel", name, "error", err)
		return err
	}
	if w.active != nil {
		if err := w.active.WriteChannel(ch.toRecord()); err != nil {
			return err
		}
	}
	return nil
}

// WriteMessage appends one message to the active segment. The append, the
// counter update, and the rotation decision happen as one atomic step, so a
// rotation decision is always made against a consistent byte count and no
// message can land in a segment that has left the Writing state.
func (w *Writer) WriteMessage(channelName string, payload []byte, timestamp uint64) error {
	start := time.Now()
	err := w.writeMessage(channelName, payload, timestamp)
	w.metrics.RecordAppend(time.Since(start), err)
	if err != nil {
		w.logger.Warn("write message failed", "channel", channelName, "error", err)
	}
	return err
}

// WriteRawMessage appends an externally-owned message handle, stamping it
// with the current time. A nil handle is a caller error.
func (w *Writer) WriteRawMessage(m *RawMessage) error {
	if m == nil {
		return ErrNilMessage
	}
	return w.WriteMessage(m.ChannelName, m.Content, uint64(time.Now().UnixNano()))
}

func (w *Writer) writeMessage(channelName string, payload []byte, timestamp uint64) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if _, ok := w.registry.Lookup(channelName); !ok {
		return fmt.Errorf("%w: %q", ErrChannelNotFound, channelName)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return ErrNotOpen
	}
	if w.active == nil {
		return fmt.Errorf("no active segment: %w", w.segmentErr)
	}

	if err := w.active.Append(record.Message{
		ChannelName: channelName,
		Timestamp:   timestamp,
		Payload:     payload,
	}); err != nil {
		return err
	}
	w.progress.addMessage(len(payload))

	if w.opts.Policy.ShouldRotate(w.active.RawBytes(), time.Since(w.segmentBegin)) {
		rotStart := time.Now()
		if err := w.rotateLocked(); err != nil {
			// The message itself is already durably queued in the previous
			// segment; the failure poisons only subsequent appends.
			w.logger.Error("segment rotation failed", "error", err)
			return nil
		}
		w.metrics.RecordRotation(time.Since(rotStart))
	}
	return nil
}

// rotateLocked hands the active segment to the background finalize task and
// installs its successor. Caller holds w.mu.
func (w *Writer) rotateLocked() error {
	old := w.active

	// Step 1: the segment leaves the Writing state; appends to it now fail.
	old.MarkFinalizing()

	// Step 2: bounded backpressure. If the previous finalize is still
	// running this blocks the triggering append until the slot frees up,
	// keeping at most one finalize in flight.
	if err := w.finalizeSem.Acquire(context.Background(), 1); err != nil {
		return err
	}

	// Step 3: the background task becomes the sole owner of the segment.
	w.backup.Store(old)
	w.finalizeWG.Add(1)
	go w.finalizeBackground(old)

	// Step 4: install the successor and re-emit every registered channel so
	// the new file is self-describing.
	now := time.Now()
	next, err := record.Create(w.fsys, w.basePath, w.fileIndex+1, uint64(now.UnixNano()), w.opts.Compression)
	if err != nil {
		w.active = nil
		w.segmentErr = err
		return fmt.Errorf("create segment %d: %w", w.fileIndex+1, err)
	}
	for _, ch := range w.registry.Channels() {
		if err := next.WriteChannel(ch.toRecord()); err != nil {
			w.logger.Error("re-emit channel metadata failed", "channel", ch.Name, "error", err)
		}
	}

	from := w.fileIndex
	w.fileIndex++
	w.active = next
	w.segmentBegin = now
	w.segmentErr = nil
	w.progress.setFileIndex(w.fileIndex)
	w.logger.LogRotation(from, w.fileIndex, old.RawBytes())
	return nil
}

func (w *Writer) finalizeBackground(fw *record.FileWriter) {
	defer w.finalizeWG.Done()
	defer w.finalizeSem.Release(1)

	start := time.Now()
	err := fw.Finalize()
	w.metrics.RecordFinalize(time.Since(start), err)
	w.logger.LogFinalize(fw.Path(), fw.Index(), fw.MessageCount(), err)

	if err != nil {
		w.recordBackgroundErr(err)
	} else if w.archive != nil {
		w.archive.enqueue(fw.Path())
	}
	w.backup.CompareAndSwap(fw, nil)
}

func (w *Writer) recordBackgroundErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	w.bgErrs = append(w.bgErrs, err)
}

// Close finalizes the active segment synchronously, waits for any in-flight
// background finalize and archive uploads, and transitions the writer to
// closed. It returns any errors background work reported during the
// session. No write is observable after Close returns; subsequent writes
// fail with ErrNotOpen. Closing a closed writer is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return nil
	}
	w.open = false
	active := w.active
	w.active = nil
	w.mu.Unlock()

	var errs []error
	if active != nil {
		active.MarkFinalizing()
		start := time.Now()
		err := active.Finalize()
		w.metrics.RecordFinalize(time.Since(start), err)
		w.logger.LogFinalize(active.Path(), active.Index(), active.MessageCount(), err)
		if err != nil {
			errs = append(errs, err)
		} else if w.archive != nil {
			w.archive.enqueue(active.Path())
		}
	}

	w.finalizeWG.Wait()
	if w.archive != nil {
		w.archive.wait()
	}

	w.errMu.Lock()
	errs = append(errs, w.bgErrs...)
	w.bgErrs = nil
	w.errMu.Unlock()

	p := w.progress.snapshot()
	w.logger.Info("record writer closed",
		"messages", p.Messages,
		"bytes", p.Bytes,
		"files", p.FileIndex+1,
	)
	return errors.Join(errs...)
}

// Progress returns a consistent snapshot of the writer's accounting. It
// reads atomics only and never contends with the append path's lock.
func (w *Writer) Progress() Progress {
	return w.progress.snapshot()
}

// ShowProgress returns the current Progress and additionally logs it, at
// most once per Options.ProgressLogInterval. Safe to call from any thread
// at any rate.
func (w *Writer) ShowProgress() Progress {
	p := w.progress.snapshot()
	if w.progLog.Allow() {
		w.logger.Info("recording progress",
			"messages", p.Messages,
			"bytes", p.Bytes,
			"file_index", p.FileIndex,
			"elapsed", p.Elapsed.Round(time.Millisecond),
		)
	}
	return p
}
