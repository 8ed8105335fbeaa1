package pipeline

import (
	"context"
	"time"

	"github.com/chatpot/chatpot-core/core/avatar"
	"github.com/chatpot/chatpot-core/core/chat"
	"github.com/chatpot/chatpot-core/core/speechtotext"
	"github.com/chatpot/chatpot-core/core/store"
	"github.com/chatpot/chatpot-core/core/stream"
	"github.com/chatpot/chatpot-core/core/texttospeech"
)

type ControllerOption func(*Controller)

// Transcriber turns a finalized audio buffer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioBuffer []byte, opts ...speechtotext.TranscriptionOption) (*speechtotext.Transcription, error)
}

func WithTranscriber(client Transcriber) ControllerOption {
	return func(c *Controller) { c.transcriber = client }
}

// CompletionStream is a lazy, finite, non-restartable sequence of decoded
// completion chunks.
type CompletionStream interface {
	Chunks(ctx context.Context) func(func(stream.Chunk, error) bool)
}

// Completer opens a streamed completion over the conversation history.
type Completer interface {
	Complete(messages []chat.Message, tone chat.Tone) CompletionStream
}

func WithCompleter(client Completer) ControllerOption {
	return func(c *Controller) { c.completer = client }
}

// WithChatClient wires the HTTP completion client as the completer.
func WithChatClient(client *chat.Client) ControllerOption {
	return func(c *Controller) { c.completer = chatCompleter{client: client} }
}

type chatCompleter struct {
	client *chat.Client
}

func (c chatCompleter) Complete(messages []chat.Message, tone chat.Tone) CompletionStream {
	return c.client.Complete(messages, tone)
}

// Synthesizer turns final reply text into a binary audio buffer.
type Synthesizer interface {
	Synthesize(ctx context.Context, provider texttospeech.Provider, text string, opts ...texttospeech.SynthesisOption) (*texttospeech.Synthesis, error)
}

func WithSynthesizer(client Synthesizer, provider texttospeech.Provider) ControllerOption {
	return func(c *Controller) {
		c.synthesizer = client
		c.provider = provider
	}
}

func WithVoice(voice string) ControllerOption {
	return func(c *Controller) { c.voice = voice }
}

func WithCaptureDevice(device CaptureDevice) ControllerOption {
	return func(c *Controller) { c.captureDevice = device }
}

func WithPlaybackDevice(device PlaybackDevice) ControllerOption {
	return func(c *Controller) { c.playbackDevice = device }
}

func WithAvatar(renderer avatar.Collaborator) ControllerOption {
	return func(c *Controller) { c.renderer = renderer }
}

// Admission is the rate-limit check run before any provider call. A nil
// admission check means rate limiting is disabled, which is pass-through, not
// an error.
type Admission interface {
	Allow(ctx context.Context, key string) error
}

func WithAdmission(limiter Admission, identity string) ControllerOption {
	return func(c *Controller) {
		c.limiter = limiter
		c.identity = identity
	}
}

// ContentPolicy is the synchronous, zero-network content check run against the
// latest user message.
type ContentPolicy interface {
	Violates(text string) bool
}

func WithPolicy(policy ContentPolicy) ControllerOption {
	return func(c *Controller) { c.policy = policy }
}

// MessageStore receives finalized messages, never mid-stream ones.
type MessageStore interface {
	AppendMessage(message store.Message) (store.Message, error)
}

func WithMessageStore(messages MessageStore, chatID string) ControllerOption {
	return func(c *Controller) {
		c.messages = messages
		c.chatID = chatID
	}
}

func WithTone(tone chat.Tone) ControllerOption {
	return func(c *Controller) { c.tone = tone }
}

// WithMBTI biases the emotion side channel towards the profile's personality
// type.
func WithMBTI(mbti string) ControllerOption {
	return func(c *Controller) { c.mbti = mbti }
}

func WithLanguageHint(language string) ControllerOption {
	return func(c *Controller) { c.language = language }
}

func WithTranscriptionTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) { c.timeouts.transcribe = timeout }
}

func WithCompletionTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) { c.timeouts.complete = timeout }
}

func WithSynthesisTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) { c.timeouts.synthesize = timeout }
}

// WithPhaseCallback registers a callback for phase transitions of every turn.
// The callback runs inline on the turn path and should not block.
func WithPhaseCallback(callback func(Phase)) ControllerOption {
	return func(c *Controller) { c.onPhase = callback }
}

// WithDeltaCallback registers a callback for streamed reply deltas.
func WithDeltaCallback(callback func(delta string)) ControllerOption {
	return func(c *Controller) { c.onDelta = callback }
}
