// Package seglog is a segmented, multi-channel binary log writer.
//
// It persists time-ordered messages from many named channels into rotating
// record files for later replay and offline analysis. Each segment maps to
// exactly one self-describing record file: the file carries the schema
// metadata of every channel it references, so a single file can be decoded
// without its neighbors.
//
// # Quick start
//
//	w := seglog.NewWriter(func(o *seglog.Options) {
//		o.Policy.MaxSegmentBytes = 256 << 20
//		o.Policy.MaxSegmentAge = 10 * time.Minute
//	})
//	if err := w.Open("/data/run"); err != nil {
//		return err
//	}
//	defer w.Close()
//
//	w.WriteChannel("/chatter", "std.String", descriptor)
//	w.WriteMessage("/chatter", payload, uint64(time.Now().UnixNano()))
//
// Messages appended after the rotation policy fires land in the next
// segment; the previous segment's footer is written by a background task so
// the append path never waits on file finalization. At most one finalize is
// in flight per writer: a rotation requested while the previous finalize is
// still running blocks the triggering append until it completes.
//
// Finalized files can optionally be archived to a blob store (local
// directory, S3, MinIO) via Options.Archive.
package seglog
