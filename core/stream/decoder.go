// Package stream decodes the event-framed byte streams produced by the
// chat-completion collaborator into ordered text deltas.
//
// The wire format is server-sent-events style: events are separated by a
// blank line, each event line is a "field: value" pair, and the payload of
// every "data:" line is either a text delta or the reserved terminal
// sentinel. Framing is reassembled on a byte buffer so that events (and
// multi-byte characters inside them) split across reads decode identically
// to a contiguous delivery.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// DoneSentinel is the reserved data payload that marks the end of a stream.
// It is a terminal signal, never a content delta.
const DoneSentinel = "[DONE]"

var (
	eventBoundary = []byte("\n\n")
	dataPrefix    = []byte("data:")

	// ErrConsumed is returned when Chunks is invoked on a decoder whose
	// sequence was already consumed. Decoders are not restartable.
	ErrConsumed = errors.New("stream already consumed")
)

// Chunk is a single decoded unit: a text delta or the terminal marker.
// An empty Delta with Done unset is a valid no-op delta.
type Chunk struct {
	Delta string
	Done  bool
}

// Decoder turns a raw byte stream into a finite sequence of Chunks.
type Decoder struct {
	r        io.Reader
	consumed atomic.Bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Chunks returns a lazy, finite, single-use iterator over the decoded
// chunks. Iteration stops after the terminal sentinel, on reader error, or
// when ctx is cancelled. The underlying reader is not closed; that remains
// the caller's responsibility.
func (d *Decoder) Chunks(ctx context.Context) func(func(Chunk, error) bool) {
	return func(yield func(Chunk, error) bool) {
		if !d.consumed.CompareAndSwap(false, true) {
			yield(Chunk{}, ErrConsumed)
			return
		}

		buf := make([]byte, 0, 4096)
		read := make([]byte, 2048)
		for {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}

			n, err := d.r.Read(read)
			if n > 0 {
				buf = append(buf, read[:n]...)
				for {
					boundary := bytes.Index(buf, eventBoundary)
					if boundary < 0 {
						break
					}
					event := buf[:boundary]
					buf = buf[boundary+len(eventBoundary):]

					done, ok := emitEvent(event, yield)
					if done || !ok {
						return
					}
				}
			}

			if err != nil {
				if errors.Is(err, io.EOF) {
					// A closing event is valid without a trailing
					// blank line.
					emitEvent(buf, yield)
					return
				}
				yield(Chunk{}, fmt.Errorf("error reading streamed response: %w", err))
				return
			}
		}
	}
}

// emitEvent parses one blank-line-terminated event and yields a chunk per
// data line. It reports whether the terminal sentinel was seen and whether
// the consumer wants more chunks.
func emitEvent(event []byte, yield func(Chunk, error) bool) (done, more bool) {
	for line := range bytes.Lines(event) {
		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !bytes.HasPrefix(line, dataPrefix) {
			// Other fields (event:, id:, comments) carry no payload.
			continue
		}

		payload := bytes.TrimPrefix(line, dataPrefix)
		// The SSE convention allows a single space after the colon.
		payload = bytes.TrimPrefix(payload, []byte(" "))

		if string(payload) == DoneSentinel {
			yield(Chunk{Done: true}, nil)
			return true, false
		}

		if !yield(Chunk{Delta: string(payload)}, nil) {
			return false, false
		}
	}
	return false, true
}
