package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatpot/chatpot-core/core/audio"
)

// CaptureDevice is the microphone-side device contract. Acquire asks the
// platform for the device (and permission), Start begins delivering chunks,
// Stop halts delivery, Release returns the device to the platform. The
// pipeline guarantees Release is called exactly once per successful Acquire.
type CaptureDevice interface {
	Acquire(ctx context.Context) error
	Start(onAudio func(chunk []byte)) error
	Stop() error
	Release() error
	EncodingInfo() audio.EncodingInfo
}

type captureState string

const (
	captureIdle       captureState = "idle"
	captureRequesting captureState = "requesting_permission"
	captureRecording  captureState = "recording"
	captureFinalizing captureState = "finalizing"
)

// captureSession owns the capture device for the duration of one recording.
// Mutual exclusion is enforced by the session state, not an external lock;
// a second start is rejected, not queued.
type captureSession struct {
	device CaptureDevice

	mu     sync.Mutex
	state  captureState
	chunks [][]byte
}

func newCaptureSession(device CaptureDevice) *captureSession {
	return &captureSession{device: device, state: captureIdle}
}

// Start acquires the device and begins recording.
func (s *captureSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != captureIdle {
		s.mu.Unlock()
		return ErrCaptureBusy
	}
	s.state = captureRequesting
	s.mu.Unlock()

	if s.device == nil {
		s.reset()
		return newTurnError(ErrorKindMicrophoneUnavailable, fmt.Errorf("no capture device configured"))
	}

	if err := s.device.Acquire(ctx); err != nil {
		s.reset()
		return newTurnError(ErrorKindMicrophoneUnavailable, fmt.Errorf("failed to acquire capture device: %w", err))
	}

	if err := s.device.Start(s.appendChunk); err != nil {
		_ = s.device.Release()
		s.reset()
		return newTurnError(ErrorKindMicrophoneUnavailable, fmt.Errorf("failed to start capture device: %w", err))
	}

	s.mu.Lock()
	s.state = captureRecording
	s.mu.Unlock()
	return nil
}

// appendChunk stores one device fragment in arrival order. Chunks arriving
// outside the recording state are dropped.
func (s *captureSession) appendChunk(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != captureRecording {
		return
	}

	buffered := make([]byte, len(chunk))
	copy(buffered, chunk)
	s.chunks = append(s.chunks, buffered)
}

// Finalize stops recording, releases the device and concatenates the chunks
// into one buffer.
func (s *captureSession) Finalize() ([]byte, error) {
	s.mu.Lock()
	if s.state != captureRecording {
		s.mu.Unlock()
		return nil, fmt.Errorf("no recording in progress")
	}
	s.state = captureFinalizing
	s.mu.Unlock()

	stopErr := s.device.Stop()
	releaseErr := s.device.Release()

	s.mu.Lock()
	total := 0
	for _, chunk := range s.chunks {
		total += len(chunk)
	}
	buffer := make([]byte, 0, total)
	for _, chunk := range s.chunks {
		buffer = append(buffer, chunk...)
	}
	s.chunks = nil
	s.state = captureIdle
	s.mu.Unlock()

	if stopErr != nil {
		return nil, fmt.Errorf("failed to stop capture device: %w", stopErr)
	}
	if releaseErr != nil {
		return nil, fmt.Errorf("failed to release capture device: %w", releaseErr)
	}
	return buffer, nil
}

// Cancel discards the buffered audio and releases the device immediately. No
// transcription is attempted on a cancelled session.
func (s *captureSession) Cancel() {
	s.mu.Lock()
	recording := s.state == captureRecording
	s.chunks = nil
	s.state = captureIdle
	s.mu.Unlock()

	if recording {
		_ = s.device.Stop()
		_ = s.device.Release()
	}
}

func (s *captureSession) reset() {
	s.mu.Lock()
	s.chunks = nil
	s.state = captureIdle
	s.mu.Unlock()
}
