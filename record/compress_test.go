package record

import (
	"bytes"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	// Repetitive payload so both codecs actually shrink it.
	payload := bytes.Repeat([]byte("telemetry frame 0123456789 "), 64)

	for _, codec := range []Compression{CompressionZstd, CompressionLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			stored, compressed, err := compressPayload(codec, payload)
			if err != nil {
				t.Fatalf("compress failed: %v", err)
			}
			if !compressed {
				t.Fatalf("expected payload to compress")
			}
			if len(stored) >= len(payload) {
				t.Errorf("stored form not smaller: %d >= %d", len(stored), len(payload))
			}

			raw, err := decompressPayload(codec, stored)
			if err != nil {
				t.Fatalf("decompress failed: %v", err)
			}
			if !bytes.Equal(raw, payload) {
				t.Errorf("round trip mismatch")
			}
		})
	}
}

func TestCompressIncompressibleFallsBackToRaw(t *testing.T) {
	// 16 bytes of non-repeating data will not shrink.
	payload := []byte{0x01, 0xa7, 0x3c, 0x42, 0x99, 0x05, 0xee, 0x71, 0x12, 0x8f, 0xb4, 0x60, 0xd3, 0x2a, 0xc8, 0x55}

	for _, codec := range []Compression{CompressionZstd, CompressionLZ4} {
		stored, compressed, err := compressPayload(codec, payload)
		if err != nil {
			t.Fatalf("%s: compress failed: %v", codec, err)
		}
		if compressed {
			t.Errorf("%s: expected raw fallback", codec)
		}
		if !bytes.Equal(stored, payload) {
			t.Errorf("%s: raw fallback altered payload", codec)
		}
	}
}

func TestCompressNoneIsPassThrough(t *testing.T) {
	payload := []byte("unchanged")
	stored, compressed, err := compressPayload(CompressionNone, payload)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if compressed || !bytes.Equal(stored, payload) {
		t.Errorf("CompressionNone must pass payload through untouched")
	}
}
