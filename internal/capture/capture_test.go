package capture

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zigbee-lumi/internal/zcl"
)

const (
	curtain  = "00158D0001A2B3C4"
	presence = "54EF441000ABCDEF"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)

type delivered struct {
	ieee string
	msg  zcl.Message
}

func collect(out *[]delivered) Handler {
	return func(_ context.Context, ieee string, msg zcl.Message) {
		*out = append(*out, delivered{ieee, msg})
	}
}

func writeCapture(t *testing.T, gap time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "traffic.cbor")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	clock := t0
	rec.now = func() time.Time {
		now := clock
		clock = clock.Add(gap)
		return now
	}
	require.NoError(t, rec.Record(curtain, zcl.Message{Description: "catchall: 0104 0102 01 01 0040 00 7ABF 00 00 0000 0B 01 0000"}))
	require.NoError(t, rec.Record(presence, zcl.Message{ClusterID: 0xFCC0, Endpoint: 1, Data: []byte{0x1C, 0x5F, 0x11, 0x01, 0x0A}}))
	require.NoError(t, rec.Record(curtain, zcl.Message{Description: "read attr - attrId: 0008"}))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	return path
}

func TestRecordAndRead(t *testing.T) {
	path := writeCapture(t, time.Second)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.True(t, first.Time.Equal(t0), "nanosecond timestamps survive: %v", first.Time)
	assert.Equal(t, curtain, first.IEEE)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, zcl.Message{ClusterID: 0xFCC0, Endpoint: 1, Data: []byte{0x1C, 0x5F, 0x11, 0x01, 0x0A}}, second.Message)
	assert.True(t, second.Time.Equal(t0.Add(time.Second)))

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecorderAppends(t *testing.T) {
	path := writeCapture(t, time.Second)
	rec, err := NewRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(presence, zcl.Message{Description: "x"}))
	require.NoError(t, rec.Close())
	assert.NoError(t, rec.Record(presence, zcl.Message{Description: "dropped"}))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	var got []delivered
	n, err := Replay(context.Background(), r, collect(&got), ReplayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "x", got[3].msg.Description)
}

func TestWrapRecordsAndForwards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrap.cbor")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	var live []delivered
	h := rec.Wrap(collect(&live))
	h(context.Background(), curtain, zcl.Message{Description: "catchall: 0104 0102 01 01 0040 00 7ABF 00 00 0000 0B 01 0000"})
	require.NoError(t, rec.Close())
	require.Len(t, live, 1)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, live[0].msg, got.Message)
}

func TestReplayFiltersDevice(t *testing.T) {
	r, err := Open(writeCapture(t, time.Second))
	require.NoError(t, err)
	defer r.Close()

	var got []delivered
	n, err := Replay(context.Background(), r, collect(&got), ReplayOptions{IEEE: curtain})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, d := range got {
		assert.Equal(t, curtain, d.ieee)
	}
}

func TestReplayPaced(t *testing.T) {
	r, err := Open(writeCapture(t, 100*time.Millisecond))
	require.NoError(t, err)
	defer r.Close()

	var got []delivered
	start := time.Now()
	n, err := Replay(context.Background(), r, collect(&got), ReplayOptions{Paced: true, Speed: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "two 50ms gaps")
}

func TestReplayCancelled(t *testing.T) {
	r, err := Open(writeCapture(t, time.Hour))
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var got []delivered
	n, err := Replay(ctx, r, collect(&got), ReplayOptions{Paced: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, n)
}

func TestReadTruncated(t *testing.T) {
	data, err := os.ReadFile(writeCapture(t, time.Second))
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(data[:len(data)-3]))
	var got []delivered
	n, err := Replay(context.Background(), r, collect(&got), ReplayOptions{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
}
