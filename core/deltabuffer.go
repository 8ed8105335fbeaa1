package pipeline

import (
	"strings"
	"sync"
)

// deltaBuffer is an ordered, append-only buffer of streamed text deltas with
// a single blocking consumer. Producers never wait on the consumer.
type deltaBuffer struct {
	mu             sync.Mutex
	deltas         []string
	deltasConsumed int
	complete       bool
	cleared        bool
	updateSignal   chan struct{}
}

func newDeltaBuffer() *deltaBuffer {
	return &deltaBuffer{
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *deltaBuffer) Add(delta string) {
	b.mu.Lock()
	b.deltas = append(b.deltas, delta)
	b.mu.Unlock()
	b.signalUpdate()
}

// Complete marks the stream as finished; the consumer drains what is left and
// returns.
func (b *deltaBuffer) Complete() {
	b.mu.Lock()
	b.complete = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Deltas yields buffered deltas in arrival order, blocking until more arrive
// or the buffer is completed or cleared.
func (b *deltaBuffer) Deltas(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.deltasConsumed < len(b.deltas) {
			delta := b.deltas[b.deltasConsumed]
			b.deltasConsumed++
			b.mu.Unlock()
			if !yield(delta) {
				return
			}
			continue
		}

		if b.complete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

func (b *deltaBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.Join(b.deltas, "")
}

// Clear aborts the consumer without draining the remaining deltas.
func (b *deltaBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *deltaBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
