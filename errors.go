package seglog

import "errors"

var (
	// ErrNotOpen is returned by write operations on a writer that is not open.
	ErrNotOpen = errors.New("writer is not open")
	// ErrAlreadyOpen is returned by Open on a writer that is already open.
	ErrAlreadyOpen = errors.New("writer is already open")
	// ErrChannelConflict is returned when a channel is re-registered with a
	// different message type or schema descriptor.
	ErrChannelConflict = errors.New("channel registered with conflicting type")
	// ErrChannelNotFound is returned when a message names a channel that was
	// never registered.
	ErrChannelNotFound = errors.New("channel not registered")
	// ErrEmptyPayload is returned when a message carries no payload.
	ErrEmptyPayload = errors.New("empty message payload")
	// ErrNilMessage is returned when a raw message handle is nil.
	ErrNilMessage = errors.New("nil raw message")
)
