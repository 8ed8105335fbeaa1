package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle phase of a turn. A turn moves strictly forward
// through the happy path and reaches exactly one terminal phase.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseCapturing          Phase = "capturing"
	PhaseTranscribing       Phase = "transcribing"
	PhaseAwaitingCompletion Phase = "awaiting_completion"
	PhaseStreamingReply     Phase = "streaming_reply"
	PhaseSynthesizing       Phase = "synthesizing"
	PhaseSpeaking           Phase = "speaking"
	PhaseCancelled          Phase = "cancelled"
	PhaseError              Phase = "error"
)

// terminal reports whether the phase ends the turn.
func (p Phase) terminal() bool {
	return p == PhaseIdle || p == PhaseCancelled || p == PhaseError
}

// Turn is one user-initiated exchange. It is owned by the controller and
// discarded, not persisted, once it reaches a terminal phase.
type Turn struct {
	ID        string
	StartedAt time.Time

	mu      sync.Mutex
	phase   Phase
	err     *TurnError
	refused bool

	cancel     context.CancelFunc
	cancelOnce sync.Once
	onPhase    func(Phase)
}

func newTurn(onPhase func(Phase)) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		phase:     PhaseIdle,
		onPhase:   onPhase,
	}
}

// Phase returns the turn's current phase.
func (t *Turn) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Err returns the terminal error of a failed turn, nil otherwise.
func (t *Turn) Err() *TurnError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Refused reports whether the turn was short-circuited by the content policy.
// A refused turn is not an error; it carries the canned refusal as its reply.
func (t *Turn) Refused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refused
}

// Cancelled reports whether the turn was cancelled by the user.
func (t *Turn) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase == PhaseCancelled
}

func (t *Turn) setPhase(phase Phase) {
	t.mu.Lock()
	if t.phase.terminal() && t.phase != PhaseIdle {
		// Cancelled and Error are final; late stage goroutines must not
		// resurrect the turn.
		t.mu.Unlock()
		return
	}
	t.phase = phase
	onPhase := t.onPhase
	t.mu.Unlock()

	if onPhase != nil {
		onPhase(phase)
	}
}

func (t *Turn) fail(kind ErrorKind, err error) *TurnError {
	turnErr := newTurnError(kind, err)
	t.mu.Lock()
	if t.phase == PhaseCancelled {
		// Cancellation unwinds stages, so their errors are expected noise.
		t.mu.Unlock()
		return turnErr
	}
	if t.err == nil {
		t.err = turnErr
	} else {
		turnErr = t.err
	}
	t.mu.Unlock()
	t.setPhase(PhaseError)
	return turnErr
}

func (t *Turn) markRefused() {
	t.mu.Lock()
	t.refused = true
	t.mu.Unlock()
}

// Cancel aborts the in-flight stage of the turn. It only unwinds the active
// work; it never re-issues a request.
func (t *Turn) Cancel() {
	t.cancelOnce.Do(func() {
		t.setPhase(PhaseCancelled)
		if t.cancel != nil {
			t.cancel()
		}
	})
}
