package seglog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/seglog/internal/fs"
	"github.com/hupe1980/seglog/record"
	"github.com/hupe1980/seglog/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, optFns ...func(o *Options)) (*Writer, string) {
	t.Helper()

	base := filepath.Join(t.TempDir(), "demo.record")
	w := NewWriter(append([]func(o *Options){
		func(o *Options) {
			o.Logger = NoopLogger()
		},
	}, optFns...)...)
	require.NoError(t, w.Open(base))

	t.Cleanup(func() {
		_ = w.Close()
	})
	return w, base
}

func segmentPaths(t *testing.T, base string) []string {
	t.Helper()

	var paths []string
	for i := uint64(0); ; i++ {
		p := record.FileName(base, i)
		if _, err := os.Stat(p); err != nil {
			break
		}
		paths = append(paths, p)
	}
	return paths
}

func TestWriterLifecycle(t *testing.T) {
	t.Run("writes require open", func(t *testing.T) {
		w := NewWriter(func(o *Options) { o.Logger = NoopLogger() })
		assert.ErrorIs(t, w.WriteChannel("/chatter", "proto.RawMessage", nil), ErrNotOpen)
		assert.ErrorIs(t, w.WriteMessage("/chatter", []byte("x"), 1), ErrNotOpen)
	})

	t.Run("double open rejected", func(t *testing.T) {
		w, base := newTestWriter(t)
		assert.ErrorIs(t, w.Open(base), ErrAlreadyOpen)
	})

	t.Run("close is terminal and idempotent", func(t *testing.T) {
		w, _ := newTestWriter(t)
		require.NoError(t, w.WriteChannel("/chatter", "proto.RawMessage", nil))
		require.NoError(t, w.WriteMessage("/chatter", []byte("hello"), 1))

		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
		assert.ErrorIs(t, w.WriteMessage("/chatter", []byte("late"), 2), ErrNotOpen)
	})

	t.Run("failed open is retryable", func(t *testing.T) {
		dir := t.TempDir()
		// A directory where the record file should go makes creation fail.
		blocked := filepath.Join(dir, "demo.record.00000")
		require.NoError(t, os.MkdirAll(blocked, 0o755))

		w := NewWriter(func(o *Options) { o.Logger = NoopLogger() })
		base := filepath.Join(dir, "demo.record")
		require.Error(t, w.Open(base))

		require.NoError(t, os.Remove(blocked))
		require.NoError(t, w.Open(base))
		require.NoError(t, w.Close())
	})
}

func TestWriterValidation(t *testing.T) {
	w, _ := newTestWriter(t)
	require.NoError(t, w.WriteChannel("/imu", "sensor.Imu", []byte("schema")))

	t.Run("empty payload", func(t *testing.T) {
		assert.ErrorIs(t, w.WriteMessage("/imu", nil, 1), ErrEmptyPayload)
		assert.ErrorIs(t, w.WriteMessage("/imu", []byte{}, 1), ErrEmptyPayload)
	})

	t.Run("unknown channel", func(t *testing.T) {
		assert.ErrorIs(t, w.WriteMessage("/gps", []byte("x"), 1), ErrChannelNotFound)
	})

	t.Run("nil raw message", func(t *testing.T) {
		assert.ErrorIs(t, w.WriteRawMessage(nil), ErrNilMessage)
	})

	t.Run("conflicting re-registration", func(t *testing.T) {
		require.NoError(t, w.WriteChannel("/imu", "sensor.Imu", []byte("schema")))
		assert.ErrorIs(t, w.WriteChannel("/imu", "sensor.Gps", []byte("schema")), ErrChannelConflict)
		assert.ErrorIs(t, w.WriteChannel("/imu", "sensor.Imu", []byte("other")), ErrChannelConflict)

		// The original registration stays intact.
		ch, ok := w.registry.Lookup("/imu")
		require.True(t, ok)
		assert.Equal(t, "sensor.Imu", ch.MessageType)
	})
}

func TestWriterRoundTrip(t *testing.T) {
	w, base := newTestWriter(t)

	require.NoError(t, w.WriteChannel("/imu", "sensor.Imu", []byte("imu-schema")))
	require.NoError(t, w.WriteChannel("/gps", "sensor.Gps", nil))

	payloads := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for i, p := range payloads {
		require.NoError(t, w.WriteMessage("/imu", p, uint64(1000+i)))
	}
	require.NoError(t, w.WriteMessage("/gps", []byte("fix"), 2000))
	require.NoError(t, w.Close())

	c, err := record.ReadFile(fs.Default, record.FileName(base, 0))
	require.NoError(t, err)

	assert.Equal(t, record.FormatVersion, c.Header.Version)
	assert.Equal(t, uint64(0), c.Header.FileIndex)

	require.Len(t, c.Channels, 2)
	byName := map[string]record.Channel{}
	for _, ch := range c.Channels {
		byName[ch.Name] = ch
	}
	assert.Equal(t, "sensor.Imu", byName["/imu"].MessageType)
	assert.Equal(t, []byte("imu-schema"), byName["/imu"].SchemaDescriptor)
	assert.Equal(t, "sensor.Gps", byName["/gps"].MessageType)

	require.Len(t, c.Messages, 4)
	assert.Equal(t, "/imu", c.Messages[0].ChannelName)
	assert.Equal(t, []byte("first"), c.Messages[0].Payload)
	assert.Equal(t, uint64(1000), c.Messages[0].Timestamp)
	assert.Equal(t, []byte("fix"), c.Messages[3].Payload)

	require.NotNil(t, c.Footer)
	assert.Equal(t, uint64(4), c.Footer.MessageCount)
	assert.Equal(t, uint64(2000), c.Footer.EndTime)
	assert.Equal(t, uint64(5+6+5+3), c.Footer.RawBytes)
}

func TestWriterRotationBySize(t *testing.T) {
	const payloadSize = 100

	w, base := newTestWriter(t, func(o *Options) {
		o.Policy = RotationPolicy{MaxSegmentBytes: 3 * payloadSize}
	})
	require.NoError(t, w.WriteChannel("/lidar", "sensor.PointCloud", []byte("pc")))

	rng := testutil.NewRNG(7)
	const total = 20
	for i := 0; i < total; i++ {
		require.NoError(t, w.WriteMessage("/lidar", rng.Payload(payloadSize), uint64(i+1)))
	}
	require.NoError(t, w.Close())

	paths := segmentPaths(t, base)
	require.Greater(t, len(paths), 1, "size policy should have rotated")

	var sum uint64
	for i, p := range paths {
		c, err := record.ReadFile(fs.Default, p)
		require.NoError(t, err)

		// Contiguous indices, each file self-describing and finalized.
		assert.Equal(t, uint64(i), c.Header.FileIndex)
		require.Len(t, c.Channels, 1, "every segment must carry the channel metadata")
		assert.Equal(t, "/lidar", c.Channels[0].Name)
		require.NotNil(t, c.Footer, "every segment must be finalized")
		assert.Equal(t, uint64(len(c.Messages)), c.Footer.MessageCount)

		// A segment overshoots the byte budget by at most one payload.
		assert.LessOrEqual(t, c.Footer.RawBytes, uint64(3*payloadSize+payloadSize))
		sum += c.Footer.MessageCount
	}
	assert.Equal(t, uint64(total), sum, "no message lost or duplicated across rotation")
}

func TestWriterRotationByAge(t *testing.T) {
	w, base := newTestWriter(t, func(o *Options) {
		o.Policy = RotationPolicy{MaxSegmentAge: 10 * time.Millisecond}
	})
	require.NoError(t, w.WriteChannel("/tick", "std.Empty", nil))

	require.NoError(t, w.WriteMessage("/tick", []byte("a"), 1))
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, w.WriteMessage("/tick", []byte("b"), 2))
	require.NoError(t, w.Close())

	paths := segmentPaths(t, base)
	require.Len(t, paths, 2, "age policy should have rotated exactly once")

	first, err := record.ReadFile(fs.Default, paths[0])
	require.NoError(t, err)
	second, err := record.ReadFile(fs.Default, paths[1])
	require.NoError(t, err)

	// The message that triggered the rotation stays in the old segment.
	require.Len(t, first.Messages, 2)
	assert.Empty(t, second.Messages)
	assert.Greater(t, second.Header.BeginTime, first.Header.BeginTime)
}

func TestWriterZeroPolicyNeverRotates(t *testing.T) {
	w, base := newTestWriter(t, func(o *Options) {
		o.Policy = RotationPolicy{}
	})
	require.NoError(t, w.WriteChannel("/bulk", "std.Bytes", nil))

	rng := testutil.NewRNG(3)
	for i := 0; i < 500; i++ {
		require.NoError(t, w.WriteMessage("/bulk", rng.Payload(1024), uint64(i+1)))
	}
	require.NoError(t, w.Close())

	assert.Len(t, segmentPaths(t, base), 1)
}

func TestWriterCompressionRoundTrip(t *testing.T) {
	for _, codec := range []record.Compression{record.CompressionZstd, record.CompressionLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			w, base := newTestWriter(t, func(o *Options) {
				o.Compression = codec
			})
			require.NoError(t, w.WriteChannel("/text", "std.String", nil))

			rng := testutil.NewRNG(11)
			want := make([][]byte, 10)
			for i := range want {
				want[i] = rng.CompressiblePayload(4096)
				require.NoError(t, w.WriteMessage("/text", want[i], uint64(i+1)))
			}
			require.NoError(t, w.Close())

			path := record.FileName(base, 0)
			c, err := record.ReadFile(fs.Default, path)
			require.NoError(t, err)
			assert.Equal(t, codec, c.Header.Compression)
			require.Len(t, c.Messages, len(want))
			for i, m := range c.Messages {
				assert.Equal(t, want[i], m.Payload)
			}

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Less(t, info.Size(), int64(10*4096), "compressible payloads should shrink the file")
		})
	}
}

func TestWriterChannelMetadataCarriedForward(t *testing.T) {
	// Channels registered in earlier segments must reappear in every later
	// segment, so each file replays standalone.
	w, base := newTestWriter(t, func(o *Options) {
		o.Policy = RotationPolicy{MaxSegmentBytes: 50}
	})

	names := testutil.ChannelNames(4)
	for _, name := range names {
		require.NoError(t, w.WriteChannel(name, "sensor.Generic", nil))
	}
	rng := testutil.NewRNG(5)
	for i := 0; i < 30; i++ {
		require.NoError(t, w.WriteMessage(names[i%len(names)], rng.Payload(40), uint64(i+1)))
	}
	require.NoError(t, w.Close())

	paths := segmentPaths(t, base)
	require.Greater(t, len(paths), 1)
	for _, p := range paths {
		c, err := record.ReadFile(fs.Default, p)
		require.NoError(t, err)

		got := make([]string, 0, len(c.Channels))
		for _, ch := range c.Channels {
			got = append(got, ch.Name)
		}
		assert.ElementsMatch(t, names, got, "segment %s must describe all channels", p)
	}
}

func TestWriterProgress(t *testing.T) {
	w, _ := newTestWriter(t, func(o *Options) {
		o.Policy = RotationPolicy{MaxSegmentBytes: 25}
	})
	require.NoError(t, w.WriteChannel("/odom", "nav.Odometry", nil))

	p0 := w.Progress()
	assert.Zero(t, p0.Messages)
	assert.Zero(t, p0.Bytes)
	assert.Zero(t, p0.FileIndex)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteMessage("/odom", []byte("0123456789"), uint64(i+1)))
	}

	p := w.ShowProgress()
	assert.Equal(t, uint64(5), p.Messages)
	assert.Equal(t, uint64(50), p.Bytes)
	assert.Greater(t, p.FileIndex, uint64(0), "rotation should have advanced the file index")
	assert.Greater(t, p.Elapsed, time.Duration(0))

	// Rejected writes must not advance the counters.
	require.Error(t, w.WriteMessage("/odom", nil, 99))
	assert.Equal(t, uint64(5), w.Progress().Messages)
}

func TestWriterFinalizeFailureSurfacesAtClose(t *testing.T) {
	faulty := fs.NewFaultyFS(fs.LocalFS{})
	// Writes are buffered, so the fault stays invisible until the flush at
	// finalization.
	faulty.SetFault(fs.Fault{FailAfterBytes: 4})

	w := NewWriter(func(o *Options) {
		o.Logger = NoopLogger()
		o.FileSystem = faulty
	})
	base := filepath.Join(t.TempDir(), "demo.record")
	require.NoError(t, w.Open(base))
	require.NoError(t, w.WriteChannel("/cam", "sensor.Image", nil))
	require.NoError(t, w.WriteMessage("/cam", []byte("frame"), 1))

	assert.ErrorIs(t, w.Close(), fs.ErrInjected)
}

func TestWriterMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	w, _ := newTestWriter(t, func(o *Options) {
		o.Metrics = metrics
		o.Policy = RotationPolicy{MaxSegmentBytes: 30}
	})
	require.NoError(t, w.WriteChannel("/speed", "std.Float64", nil))

	for i := 0; i < 10; i++ {
		require.NoError(t, w.WriteMessage("/speed", []byte("1234567890"), uint64(i+1)))
	}
	require.Error(t, w.WriteMessage("/missing", []byte("x"), 99))
	require.NoError(t, w.Close())

	assert.Equal(t, uint64(11), metrics.Appends.Load())
	assert.Equal(t, uint64(1), metrics.AppendErrors.Load())
	assert.Greater(t, metrics.Rotations.Load(), uint64(0))
	assert.Equal(t, metrics.Rotations.Load()+1, metrics.Finalizes.Load(),
		"every rotation finalizes one segment, close finalizes the last")
	assert.Equal(t, uint64(0), metrics.FinalizeErrors.Load())
}

func TestWriterReopenNewSession(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(func(o *Options) { o.Logger = NoopLogger() })

	require.NoError(t, w.Open(filepath.Join(dir, "a.record")))
	require.NoError(t, w.WriteChannel("/pose", "nav.Pose", nil))
	require.NoError(t, w.WriteMessage("/pose", []byte("p1"), 1))
	require.NoError(t, w.Close())

	// A second session reuses the registry: /pose needs no re-registration
	// and its metadata lands in the new session's first file.
	require.NoError(t, w.Open(filepath.Join(dir, "b.record")))
	require.NoError(t, w.WriteMessage("/pose", []byte("p2"), 2))
	require.NoError(t, w.Close())

	c, err := record.ReadFile(fs.Default, record.FileName(filepath.Join(dir, "b.record"), 0))
	require.NoError(t, err)
	require.Len(t, c.Channels, 1)
	assert.Equal(t, "/pose", c.Channels[0].Name)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, []byte("p2"), c.Messages[0].Payload)

	// Counters restart per session.
	assert.Equal(t, uint64(1), w.Progress().Messages)
}

func ExampleWriter() {
	dir, _ := os.MkdirTemp("", "seglog")
	defer os.RemoveAll(dir)

	w := NewWriter(func(o *Options) {
		o.Logger = NoopLogger()
		o.Policy = RotationPolicy{MaxSegmentBytes: 1 << 20}
	})
	if err := w.Open(filepath.Join(dir, "demo.record")); err != nil {
		panic(err)
	}
	defer w.Close()

	_ = w.WriteChannel("/chatter", "std.String", nil)
	_ = w.WriteMessage("/chatter", []byte("hello"), uint64(time.Now().UnixNano()))

	fmt.Println(w.Progress().Messages)
	// Output: 1
}
