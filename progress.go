package seglog

import (
	"sync/atomic"
	"time"
)

// Progress is a point-in-time snapshot of a writer's accounting.
type Progress struct {
	Messages  uint64
	Bytes     uint64
	FileIndex uint64
	Elapsed   time.Duration
}

// progressCounters holds the writer's counters as atomics so snapshots never
// contend with the append path's lock.
type progressCounters struct {
	messages  atomic.Uint64
	bytes     atomic.Uint64
	fileIndex atomic.Uint64
	startNano atomic.Int64
}

func (p *progressCounters) reset(start time.Time) {
	p.messages.Store(0)
	p.bytes.Store(0)
	p.fileIndex.Store(0)
	p.startNano.Store(start.UnixNano())
}

func (p *progressCounters) addMessage(payloadBytes int) {
	p.messages.Add(1)
	p.bytes.Add(uint64(payloadBytes))
}

func (p *progressCounters) setFileIndex(index uint64) {
	p.fileIndex.Store(index)
}

func (p *progressCounters) snapshot() Progress {
	var elapsed time.Duration
	if start := p.startNano.Load(); start > 0 {
		elapsed = time.Since(time.Unix(0, start))
	}
	return Progress{
		Messages:  p.messages.Load(),
		Bytes:     p.bytes.Load(),
		FileIndex: p.fileIndex.Load(),
		Elapsed:   elapsed,
	}
}
