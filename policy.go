package seglog

import "time"

// RotationPolicy decides when the active segment is handed off to
// finalization. Rotation fires when either threshold is exceeded, bounding
// both the size and the time span of every replay file independent of
// message rate. A zero threshold disables that dimension.
type RotationPolicy struct {
	// MaxSegmentBytes is the raw payload byte budget of one segment.
	MaxSegmentBytes uint64
	// MaxSegmentAge is the wall-clock budget of one segment.
	MaxSegmentAge time.Duration
}

// ShouldRotate reports whether a segment with the given cumulative raw
// payload size and age must be rotated. Pure function of its inputs.
func (p RotationPolicy) ShouldRotate(rawBytes uint64, elapsed time.Duration) bool {
	if p.MaxSegmentBytes > 0 && rawBytes > p.MaxSegmentBytes {
		return true
	}
	if p.MaxSegmentAge > 0 && elapsed > p.MaxSegmentAge {
		return true
	}
	return false
}
