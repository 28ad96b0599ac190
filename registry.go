package seglog

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/seglog/record"
)

// Channel is a registered named message stream.
type Channel struct {
	Name             string
	MessageType      string
	SchemaDescriptor []byte
	FirstSeen        time.Time
}

func (c Channel) toRecord() record.Channel {
	return record.Channel{
		Name:             c.Name,
		MessageType:      c.MessageType,
		SchemaDescriptor: c.SchemaDescriptor,
	}
}

// ChannelRegistry tracks the channels known to a writer. Channels are
// immutable once registered: re-registering with identical type and
// descriptor succeeds silently, anything else is a conflict.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewChannelRegistry creates an empty registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[string]Channel)}
}

// Register inserts the channel if absent. It returns the registered channel
// (the original one on an identical re-registration) or ErrChannelConflict.
func (r *ChannelRegistry) Register(name, messageType string, schemaDescriptor []byte) (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.channels[name]; ok {
		if existing.MessageType == messageType && bytes.Equal(existing.SchemaDescriptor, schemaDescriptor) {
			return existing, nil
		}
		return Channel{}, fmt.Errorf("%w: %q is %q, re-registered as %q",
			ErrChannelConflict, name, existing.MessageType, messageType)
	}

	ch := Channel{
		Name:             name,
		MessageType:      messageType,
		SchemaDescriptor: schemaDescriptor,
		FirstSeen:        time.Now(),
	}
	r.channels[name] = ch
	return ch, nil
}

// Lookup returns the channel registered under name.
func (r *ChannelRegistry) Lookup(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Channels returns all registered channels sorted by name.
func (r *ChannelRegistry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered channels.
func (r *ChannelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
