package record

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressed payloads are stored as [raw_len u32][compressed bytes] so the
// decoder can size its destination buffer up front (lz4 block decompression
// requires it; zstd simply ignores the hint).

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
)

func zstdInit() {
	// EncodeAll/DecodeAll are safe for concurrent use on shared instances.
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
}

// compressPayload encodes p with the given codec. The second return value is
// false when the codec is none or compression did not shrink the payload, in
// which case p itself is returned and must be stored uncompressed.
func compressPayload(codec Compression, p []byte) ([]byte, bool, error) {
	if codec == CompressionNone || len(p) == 0 {
		return p, false, nil
	}

	var compressed []byte
	switch codec {
	case CompressionZstd:
		zstdOnce.Do(zstdInit)
		compressed = zstdEnc.EncodeAll(p, make([]byte, 4, 4+len(p)))
	case CompressionLZ4:
		dst := make([]byte, 4+lz4.CompressBlockBound(len(p)))
		n, err := lz4.CompressBlock(p, dst[4:], nil)
		if err != nil {
			return nil, false, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible.
			return p, false, nil
		}
		compressed = dst[:4+n]
	default:
		return nil, false, fmt.Errorf("unsupported compression codec: %s", codec)
	}

	if len(compressed) >= 4+len(p) {
		return p, false, nil
	}
	binary.LittleEndian.PutUint32(compressed[:4], uint32(len(p)))
	return compressed, true, nil
}

// decompressPayload decodes a stored payload that has the compressed flag set.
func decompressPayload(codec Compression, stored []byte) ([]byte, error) {
	if len(stored) < 4 {
		return nil, fmt.Errorf("compressed payload too short: %d bytes", len(stored))
	}
	rawLen := binary.LittleEndian.Uint32(stored[:4])

	switch codec {
	case CompressionZstd:
		zstdOnce.Do(zstdInit)
		raw, err := zstdDec.DecodeAll(stored[4:], make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return raw, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored[4:], raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return raw[:n], nil
	default:
		return nil, fmt.Errorf("unsupported compression codec: %s", codec)
	}
}
