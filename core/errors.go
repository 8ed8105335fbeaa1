package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnActive is returned when a new turn is requested while another
	// turn is still in a non-terminal phase. The second request is rejected,
	// not queued.
	ErrTurnActive = errors.New("a turn is already active")

	// ErrCaptureBusy is returned when a capture session is requested while
	// another capture session is still open.
	ErrCaptureBusy = errors.New("a capture session is already open")
)

// ErrorKind identifies which stage of a turn failed.
type ErrorKind string

const (
	ErrorKindMicrophoneUnavailable  ErrorKind = "microphone_unavailable"
	ErrorKindTranscriptionFailed    ErrorKind = "transcription_failed"
	ErrorKindTooManyRequests        ErrorKind = "too_many_requests"
	ErrorKindCompletionStreamFailed ErrorKind = "completion_stream_failed"
	ErrorKindSynthesisFailed        ErrorKind = "synthesis_failed"
	ErrorKindPlaybackFailed         ErrorKind = "playback_failed"
)

// TurnError is the terminal error of a failed turn. It carries the stage kind
// so the caller can decide whether re-initiating the turn makes sense; nothing
// is retried inside the pipeline itself.
type TurnError struct {
	Kind ErrorKind
	Err  error
}

func (e *TurnError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// Retriable reports whether the caller may reasonably retry the same turn
// after a backoff.
func (e *TurnError) Retriable() bool {
	return e.Kind == ErrorKindTooManyRequests
}

func newTurnError(kind ErrorKind, err error) *TurnError {
	return &TurnError{Kind: kind, Err: err}
}
