package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chatpot/chatpot-core/core/audio"
	"github.com/chatpot/chatpot-core/core/avatar"
)

// PlaybackDevice is the speaker-side device contract. Play blocks until the
// buffer drains or the context is cancelled; Stop aborts an in-flight Play.
// The pipeline guarantees Release is called exactly once per successful
// Acquire.
type PlaybackDevice interface {
	Acquire(ctx context.Context) error
	Play(ctx context.Context, buffer []byte) error
	Stop() error
	Release() error
	EncodingInfo() audio.EncodingInfo
}

type playbackState string

const (
	playbackIdle     playbackState = "idle"
	playbackSpeaking playbackState = "speaking"
)

// playbackSession drives one synthesized buffer through the playback device
// and mirrors the speaking state onto the avatar. The pipeline only observes
// start, end and error; position is a UI readout, never a sequencing input.
type playbackSession struct {
	device   PlaybackDevice
	renderer avatar.Collaborator

	mu        sync.Mutex
	state     playbackState
	startedAt time.Time
	buffered  int
}

func newPlaybackSession(device PlaybackDevice, renderer avatar.Collaborator) *playbackSession {
	if renderer == nil {
		renderer = avatar.Noop{}
	}
	return &playbackSession{device: device, renderer: renderer, state: playbackIdle}
}

// Play acquires the device, plays the whole buffer, and releases the device.
// A nil device skips playback rather than failing, so text-only setups work.
func (s *playbackSession) Play(ctx context.Context, buffer []byte) error {
	if s.device == nil || len(buffer) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.state != playbackIdle {
		s.mu.Unlock()
		return fmt.Errorf("playback already in progress")
	}
	s.state = playbackSpeaking
	s.startedAt = time.Now()
	s.buffered = len(buffer)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = playbackIdle
		s.buffered = 0
		s.mu.Unlock()
	}()

	if err := s.device.Acquire(ctx); err != nil {
		return fmt.Errorf("failed to acquire playback device: %w", err)
	}
	defer func() { _ = s.device.Release() }()

	if err := s.renderer.Speak(true); err != nil {
		logger.Warn("Failed to signal speaking start to avatar", "error", err)
	}
	defer func() {
		if err := s.renderer.Speak(false); err != nil {
			logger.Warn("Failed to signal speaking end to avatar", "error", err)
		}
	}()

	if err := s.device.Play(ctx, buffer); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

// Stop aborts an in-flight playback. It is idempotent and safe to call while
// idle; only the transition out of the speaking state issues a device stop.
func (s *playbackSession) Stop() error {
	s.mu.Lock()
	speaking := s.state == playbackSpeaking
	s.state = playbackIdle
	s.mu.Unlock()

	if !speaking || s.device == nil {
		return nil
	}

	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

// Position estimates how far playback has progressed. Best effort only.
func (s *playbackSession) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != playbackSpeaking {
		return 0
	}

	elapsed := time.Since(s.startedAt)
	encodingInfo := s.device.EncodingInfo()
	if encodingInfo.IsZero() {
		return elapsed
	}

	total := time.Duration(float64(s.buffered) /
		float64(encodingInfo.SampleRate) /
		float64(encodingInfo.Format.ByteSize()) *
		float64(time.Second))
	return min(elapsed, total)
}
