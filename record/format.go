package record

import (
	"errors"
	"fmt"
)

var fileMagic = [4]byte{'S', 'G', 'L', 'G'}

// FormatVersion is the current record file format version.
const FormatVersion uint16 = 1

const headerSize = 28

// Record kinds.
const (
	kindChannel byte = 1
	kindMessage byte = 2
	kindFooter  byte = 3
)

// Message record flags.
const flagCompressed byte = 1 << 0

// Compression selects the per-payload compression codec of a record file.
// The codec is fixed at file creation and recorded in the header.
type Compression uint16

const (
	// CompressionNone stores payloads verbatim.
	CompressionNone Compression = 0
	// CompressionZstd compresses payloads with zstd.
	CompressionZstd Compression = 1
	// CompressionLZ4 compresses payloads with lz4 block compression.
	CompressionLZ4 Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

var (
	// ErrInvalidMagic indicates the file does not start with the record magic.
	ErrInvalidMagic = errors.New("invalid record file magic")
	// ErrIncompatibleVersion indicates an unsupported format version.
	ErrIncompatibleVersion = errors.New("incompatible record file version")
	// ErrChecksum indicates a record failed CRC verification.
	ErrChecksum = errors.New("record checksum mismatch")
	// ErrNotWritable is returned when appending to a segment that has left
	// the Writing state.
	ErrNotWritable = errors.New("segment is no longer writable")
)

// Header describes a record file.
type Header struct {
	Version     uint16
	Compression Compression
	FileIndex   uint64
	BeginTime   uint64
}

// Channel is the schema metadata of one named message stream.
type Channel struct {
	Name             string
	MessageType      string
	SchemaDescriptor []byte
}

// Message is one timestamped payload on a channel.
type Message struct {
	ChannelName string
	Timestamp   uint64
	Payload     []byte
}

// Footer summarizes a finalized record file.
type Footer struct {
	MessageCount uint64
	EndTime      uint64
	RawBytes     uint64
}

// FileName returns the path of the record file with the given index:
// the base path plus a zero-padded numeric suffix. Every file carries the
// suffix, including index 0, so a directory listing sorts in write order.
func FileName(base string, index uint64) string {
	return fmt.Sprintf("%s.%05d", base, index)
}
