package seglog

import (
	"time"

	"github.com/hupe1980/seglog/blobstore"
	"github.com/hupe1980/seglog/internal/fs"
	"github.com/hupe1980/seglog/record"
)

// Options configures a Writer. Every writer carries its own Options value,
// so writers with independent rotation policies can coexist in one process.
type Options struct {
	// FileSystem is the file system record files are written to.
	// Nil means the local file system.
	FileSystem fs.FileSystem

	// Policy decides when the active segment rotates.
	Policy RotationPolicy

	// Compression is the per-payload codec of produced record files.
	Compression record.Compression

	// Logger receives structured log output. Nil means text to stderr.
	Logger *Logger

	// Metrics receives operational metrics. Nil means none.
	Metrics MetricsCollector

	// Archive, when set, receives every finalized record file. Uploads run
	// in the background; a failed upload is logged and counted, and the
	// file stays on local disk either way.
	Archive blobstore.Store

	// ArchiveConcurrency bounds concurrent uploads. Defaults to 2.
	ArchiveConcurrency int

	// ArchiveBytesPerSec throttles upload throughput. 0 means unlimited.
	ArchiveBytesPerSec int64

	// ProgressLogInterval is the minimum spacing between the log lines
	// emitted by ShowProgress. Defaults to 5s.
	ProgressLogInterval time.Duration
}

// DefaultOptions are the options applied before any option function runs.
var DefaultOptions = Options{
	Policy: RotationPolicy{
		MaxSegmentBytes: 1 << 30,
		MaxSegmentAge:   time.Hour,
	},
	Compression:         record.CompressionNone,
	ArchiveConcurrency:  2,
	ProgressLogInterval: 5 * time.Second,
}
