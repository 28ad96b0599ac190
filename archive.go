package seglog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/seglog/blobstore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// archiver uploads finalized record files to a blob store in the background.
// Upload failures never fail the writer: the record file stays on local disk
// and the failure is logged and counted.
type archiver struct {
	store   blobstore.Store
	logger  *Logger
	metrics MetricsCollector
	limiter *rate.Limiter
	group   *errgroup.Group
}

func newArchiver(store blobstore.Store, logger *Logger, metrics MetricsCollector, concurrency int, bytesPerSec int64) *archiver {
	if concurrency <= 0 {
		concurrency = 2
	}
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
	}

	return &archiver{
		store:   store,
		logger:  logger,
		metrics: metrics,
		limiter: limiter,
		group:   g,
	}
}

// enqueue schedules one upload. Blocks only when all upload slots are busy.
func (a *archiver) enqueue(path string) {
	a.group.Go(func() error {
		start := time.Now()
		err := a.upload(context.Background(), path)
		a.metrics.RecordArchive(time.Since(start), err)
		a.logger.LogArchive(filepath.Base(path), err)
		return nil
	})
}

func (a *archiver) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open record file for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	var r io.Reader = f
	if a.limiter != nil {
		r = &throttledReader{r: f, limiter: a.limiter}
	}
	return a.store.Put(ctx, filepath.Base(path), r, info.Size())
}

// wait blocks until all enqueued uploads have completed.
func (a *archiver) wait() {
	_ = a.group.Wait()
}

// throttledReader paces reads through a rate limiter, bounding the IO
// bandwidth an upload takes away from the append path.
type throttledReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(context.Background(), n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
