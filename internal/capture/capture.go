// Package capture records inbound device traffic as a CBOR sequence and
// replays it later through the same handler.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"zigbee-lumi/internal/zcl"
)

// Record is one captured inbound message.
type Record struct {
	Time    time.Time   `cbor:"1,keyasint"`
	IEEE    string      `cbor:"2,keyasint"`
	Message zcl.Message `cbor:"3,keyasint"`
}

// Handler consumes a message, live or replayed.
type Handler func(ctx context.Context, ieee string, msg zcl.Message)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor decoder mode: %v", err))
	}
}

// Recorder appends records to a capture file. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	now     func() time.Time
	closed  bool
}

// NewRecorder opens path for appending, creating it if needed.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return &Recorder{file: f, encoder: encMode.NewEncoder(f), now: time.Now}, nil
}

// Record appends one message. Records after Close are dropped.
func (r *Recorder) Record(ieee string, msg zcl.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.encoder.Encode(Record{Time: r.now(), IEEE: ieee, Message: msg})
}

// Wrap returns a handler that records each message before passing it on.
func (r *Recorder) Wrap(next Handler) Handler {
	return func(ctx context.Context, ieee string, msg zcl.Message) {
		_ = r.Record(ieee, msg)
		next(ctx, ieee, msg)
	}
}

// Close closes the file. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Reader streams records from a capture.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
}

// Open opens a capture file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return &Reader{closer: f, decoder: decMode.NewDecoder(f)}, nil
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: decMode.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.decoder.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode capture record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReplayOptions tune Replay.
type ReplayOptions struct {
	// Paced keeps the recorded spacing between messages, scaled by Speed.
	Paced bool
	// Speed divides the recorded gaps; values <= 0 mean 1.
	Speed float64
	// IEEE limits the replay to one device when set.
	IEEE string
}

// Replay feeds every record of r to h in order and returns the number of
// records delivered.
func Replay(ctx context.Context, r *Reader, h Handler, opts ReplayOptions) (int, error) {
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}
	var (
		n    int
		prev time.Time
	)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if opts.IEEE != "" && rec.IEEE != opts.IEEE {
			continue
		}
		if opts.Paced && !prev.IsZero() {
			if gap := rec.Time.Sub(prev); gap > 0 {
				t := time.NewTimer(time.Duration(float64(gap) / speed))
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return n, ctx.Err()
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		prev = rec.Time
		h(ctx, rec.IEEE, rec.Message)
		n++
	}
}
