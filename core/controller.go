// Package pipeline coordinates one conversational turn end to end: audio
// capture, transcription, streamed completion, synthesis and playback, with
// admission control in front and an emotion side channel alongside the
// stream. At most one turn is active per controller at any time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatpot/chatpot-core/core/avatar"
	"github.com/chatpot/chatpot-core/core/chat"
	"github.com/chatpot/chatpot-core/core/emotion"
	"github.com/chatpot/chatpot-core/core/guard"
	"github.com/chatpot/chatpot-core/core/speechtotext"
	"github.com/chatpot/chatpot-core/core/store"
	"github.com/chatpot/chatpot-core/core/stream"
	"github.com/chatpot/chatpot-core/core/texttospeech"
)

// ErrNotRecording is returned by StopRecording when no capture session is
// open, including after the active turn was cancelled.
var ErrNotRecording = errors.New("no recording in progress")

const (
	defaultTranscriptionTimeout = 30 * time.Second
	defaultCompletionTimeout    = 45 * time.Second
	defaultSynthesisTimeout     = 30 * time.Second
)

// Controller owns the turn lifecycle. Collaborators are injected through
// options; missing optional collaborators degrade the pipeline (no playback
// device means a text-only reply) instead of failing it.
type Controller struct {
	transcriber    Transcriber
	completer      Completer
	synthesizer    Synthesizer
	provider       texttospeech.Provider
	voice          string
	captureDevice  CaptureDevice
	playbackDevice PlaybackDevice
	renderer       avatar.Collaborator
	limiter        Admission
	identity       string
	policy         ContentPolicy
	messages       MessageStore
	chatID         string
	tone           chat.Tone
	mbti           string
	language       string

	timeouts struct {
		transcribe time.Duration
		complete   time.Duration
		synthesize time.Duration
	}

	onPhase func(Phase)
	onDelta func(delta string)

	conversation conversation

	mu        sync.Mutex
	active    *Turn
	activeCtx context.Context
	capture   *captureSession
	playback  *playbackSession

	closeOnce sync.Once
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		renderer: avatar.Noop{},
		tone:     chat.ToneFriendly,
	}
	c.timeouts.transcribe = defaultTranscriptionTimeout
	c.timeouts.complete = defaultCompletionTimeout
	c.timeouts.synthesize = defaultSynthesisTimeout

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels the active turn, if any, and shuts the controller down.
// Subsequent calls are no-ops; starting a turn on a closed controller is not
// prevented, callers are expected to stop using it.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.Cancel()
	})
}

// Phase returns the phase of the active turn, or PhaseIdle when no turn is
// active.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	turn := c.active
	c.mu.Unlock()

	if turn == nil {
		return PhaseIdle
	}
	return turn.Phase()
}

// Messages returns a point-in-time snapshot of the conversation sequence.
func (c *Controller) Messages() []Message {
	return c.conversation.Snapshot()
}

// StartRecording opens a capture session and begins a new turn. A second
// start while a turn is active is rejected with ErrTurnActive.
func (c *Controller) StartRecording(ctx context.Context) (*Turn, error) {
	turn, turnCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	capture := newCaptureSession(c.captureDevice)
	c.mu.Lock()
	c.capture = capture
	c.mu.Unlock()

	turn.setPhase(PhaseCapturing)
	if err := capture.Start(turnCtx); err != nil {
		var turnErr *TurnError
		if !errors.As(err, &turnErr) {
			turnErr = newTurnError(ErrorKindMicrophoneUnavailable, err)
		}
		turn.fail(turnErr.Kind, turnErr.Err)
		c.end(turn)
		return turn, turnErr
	}
	return turn, nil
}

// StopRecording finalizes the capture session, transcribes the buffer and
// runs the rest of the turn to completion. It returns once the turn reaches
// a terminal phase.
func (c *Controller) StopRecording() (*Turn, error) {
	c.mu.Lock()
	turn := c.active
	turnCtx := c.activeCtx
	capture := c.capture
	c.mu.Unlock()

	if turn == nil || capture == nil || turn.Phase() != PhaseCapturing {
		return nil, ErrNotRecording
	}

	ctx, span := tracer.Start(turnCtx, "process voice turn")
	defer span.End()

	turn.setPhase(PhaseTranscribing)
	buffer, err := capture.Finalize()
	if err != nil {
		if turn.Cancelled() {
			c.end(turn)
			return turn, nil
		}
		recordedErr := fmt.Errorf("failed to finalize capture: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		turnErr := turn.fail(ErrorKindMicrophoneUnavailable, recordedErr)
		c.end(turn)
		return turn, turnErr
	}

	if err := c.admit(ctx); err != nil {
		turnErr := turn.fail(ErrorKindTooManyRequests, err)
		c.end(turn)
		return turn, turnErr
	}

	text, err := c.transcribe(ctx, buffer)
	if err != nil {
		if turn.Cancelled() {
			c.end(turn)
			return turn, nil
		}
		recordedErr := fmt.Errorf("failed to transcribe: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		turnErr := turn.fail(ErrorKindTranscriptionFailed, recordedErr)
		c.end(turn)
		return turn, turnErr
	}

	return c.runTurn(ctx, turn, text)
}

// SendText runs a typed-message turn, skipping capture and transcription. It
// returns once the turn reaches a terminal phase.
func (c *Controller) SendText(ctx context.Context, text string) (*Turn, error) {
	turn, turnCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(turnCtx, "process text turn")
	defer span.End()

	if err := c.admit(ctx); err != nil {
		turnErr := turn.fail(ErrorKindTooManyRequests, err)
		c.end(turn)
		return turn, turnErr
	}

	return c.runTurn(ctx, turn, text)
}

// Cancel aborts the active turn, whatever phase it is in: the capture buffer
// is discarded, in-flight requests are aborted through the turn context, and
// playback is stopped. Cancelling with no active turn is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	turn := c.active
	capture := c.capture
	playback := c.playback
	c.mu.Unlock()

	if turn == nil {
		return
	}

	turn.Cancel()
	if capture != nil {
		capture.Cancel()
	}
	if playback != nil {
		if err := playback.Stop(); err != nil {
			logger.Warn("Failed to stop playback on cancellation", "error", err)
		}
	}
	c.end(turn)
}

func (c *Controller) begin(ctx context.Context) (*Turn, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, nil, ErrTurnActive
	}

	turn := newTurn(c.onPhase)
	turnCtx, cancel := context.WithCancel(ctx)
	turn.cancel = cancel
	c.active = turn
	c.activeCtx = turnCtx
	return turn, turnCtx, nil
}

// end releases the controller for the next turn. The finished turn keeps its
// terminal state for the caller to inspect.
func (c *Controller) end(turn *Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != turn {
		return
	}
	c.active = nil
	c.activeCtx = nil
	c.capture = nil
	c.playback = nil
}

func (c *Controller) transcribe(ctx context.Context, buffer []byte) (string, error) {
	if c.transcriber == nil {
		return "", fmt.Errorf("no transcriber configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.transcribe)
	defer cancel()

	opts := []speechtotext.TranscriptionOption{}
	if c.captureDevice != nil {
		opts = append(opts, speechtotext.WithEncodingInfo(c.captureDevice.EncodingInfo()))
	}
	if c.language != "" {
		opts = append(opts, speechtotext.WithLanguage(c.language))
	}

	transcription, err := c.transcriber.Transcribe(ctx, buffer, opts...)
	if err != nil {
		return "", err
	}
	return transcription.Text, nil
}

// runTurn drives an admitted turn from the policy gate through playback.
// Stages run strictly in order; each stage observes the turn context and
// unwinds on cancellation. Admission has already happened on the entry path,
// before any provider was contacted.
func (c *Controller) runTurn(ctx context.Context, turn *Turn, userText string) (*Turn, error) {
	if c.policy != nil && c.policy.Violates(userText) {
		c.refuse(turn, userText)
		return turn, nil
	}

	c.conversation.append(Message{Role: chat.RoleUser, Content: userText})
	c.persist(chat.RoleUser, userText, "")

	replyText, err := c.streamReply(ctx, turn)
	if err != nil {
		if turn.Cancelled() {
			c.end(turn)
			return turn, nil
		}
		turnErr := turn.fail(ErrorKindCompletionStreamFailed, err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(turnErr)
		span.SetStatus(codes.Error, turnErr.Error())
		c.end(turn)
		return turn, turnErr
	}
	if turn.Cancelled() {
		c.end(turn)
		return turn, nil
	}

	if err := c.speak(ctx, turn, replyText); err != nil {
		var turnErr *TurnError
		if !errors.As(err, &turnErr) {
			turnErr = newTurnError(ErrorKindPlaybackFailed, err)
		}
		if turn.Cancelled() {
			c.end(turn)
			return turn, nil
		}
		turn.fail(turnErr.Kind, turnErr.Err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(turnErr)
		span.SetStatus(codes.Error, turnErr.Error())
		c.end(turn)
		return turn, turnErr
	}

	turn.setPhase(PhaseIdle)
	c.end(turn)
	return turn, nil
}

// admit runs the rate limiter. Backend failures inside the limiter already
// fail open; only a definite quota rejection stops the turn here.
func (c *Controller) admit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	err := c.limiter.Allow(ctx, c.identity)
	if err == nil {
		return nil
	}
	if errors.Is(err, guard.ErrTooManyRequests) {
		return err
	}

	logger.Warn("Admission check failed, admitting request", "error", err)
	return nil
}

// refuse short-circuits a policy-violating turn with the canned refusal. This
// is a deliberate outcome, not an error: the turn ends in PhaseIdle and the
// completion collaborator is never contacted.
func (c *Controller) refuse(turn *Turn, userText string) {
	turn.markRefused()

	c.conversation.append(Message{Role: chat.RoleUser, Content: userText})
	c.persist(chat.RoleUser, userText, "")
	c.conversation.append(Message{Role: chat.RoleAssistant, Content: guard.Refusal})
	c.persist(chat.RoleAssistant, guard.Refusal, "")

	turn.setPhase(PhaseIdle)
	c.end(turn)
}

// streamReply opens the completion stream and accumulates the reply, feeding
// each delta to the side channel without blocking the decoder. On a stream
// error the partial text already accumulated is preserved, not discarded.
func (c *Controller) streamReply(ctx context.Context, turn *Turn) (string, error) {
	if c.completer == nil {
		return "", fmt.Errorf("no completer configured")
	}

	turn.setPhase(PhaseAwaitingCompletion)
	completionStream := c.completer.Complete(c.conversation.history(), c.tone)

	side := newSideChannel(c.renderer, c.mbti)
	c.conversation.append(Message{Role: chat.RoleAssistant})

	turn.setPhase(PhaseStreamingReply)
	streamCtx, cancel := context.WithTimeout(ctx, c.timeouts.complete)
	defer cancel()

	var accumulated strings.Builder
	var displayed string
	var streamErr error
	completionStream.Chunks(streamCtx)(func(chunk stream.Chunk, err error) bool {
		if err != nil {
			streamErr = err
			return false
		}
		if chunk.Done {
			return false
		}

		accumulated.WriteString(chunk.Delta)
		side.Push(chunk.Delta)
		if display := displayableText(accumulated.String()); len(display) > len(displayed) {
			delta := display[len(displayed):]
			displayed = display
			c.conversation.amendLast(display, "")
			if c.onDelta != nil {
				c.onDelta(delta)
			}
		}
		return true
	})

	if streamErr != nil {
		side.Abort()
		partial := emotion.StripTags(accumulated.String())
		if partial == "" {
			c.conversation.dropLast()
		} else {
			c.conversation.amendLast(partial, "")
			c.persist(chat.RoleAssistant, partial, "")
		}
		return partial, streamErr
	}

	analysis := side.Finish()
	replyText := emotion.StripTags(accumulated.String())
	c.conversation.amendLast(replyText, analysis.Emotion)
	c.persist(chat.RoleAssistant, replyText, analysis.Emotion)
	return replyText, nil
}

// displayableText is the portion of the accumulated reply safe to show
// mid-stream: complete emotion tags are stripped, and a trailing bracket run
// that may still close into a tag is withheld until it does.
func displayableText(text string) string {
	if idx := strings.LastIndexByte(text, '['); idx >= 0 && !strings.Contains(text[idx:], "]") {
		text = text[:idx]
	}
	return emotion.StripTags(text)
}

// speak synthesizes the reply and plays it. The textual reply is already
// delivered by this point, so synthesis failure is reported but does not
// retract the text.
func (c *Controller) speak(ctx context.Context, turn *Turn, replyText string) error {
	if c.synthesizer == nil || replyText == "" {
		return nil
	}

	turn.setPhase(PhaseSynthesizing)
	synthCtx, cancel := context.WithTimeout(ctx, c.timeouts.synthesize)
	defer cancel()

	opts := []texttospeech.SynthesisOption{}
	if c.voice != "" {
		opts = append(opts, texttospeech.WithVoice(c.voice))
	}
	synthesis, err := c.synthesizer.Synthesize(synthCtx, c.provider, replyText, opts...)
	if err != nil {
		return newTurnError(ErrorKindSynthesisFailed, err)
	}

	// The turn may have been cancelled and ended while synthesis was in
	// flight; a session stored past that point would shadow the next turn's.
	playback := newPlaybackSession(c.playbackDevice, c.renderer)
	c.mu.Lock()
	if c.active != turn {
		c.mu.Unlock()
		return nil
	}
	c.playback = playback
	c.mu.Unlock()

	turn.setPhase(PhaseSpeaking)
	if err := playback.Play(ctx, synthesis.Audio); err != nil {
		return newTurnError(ErrorKindPlaybackFailed, err)
	}
	return nil
}

// persist appends a finalized message to the datastore. Persistence is a
// side effect of the turn, not a stage of it: failures are logged and the
// turn continues.
func (c *Controller) persist(role chat.Role, content string, tone emotion.Emotion) {
	if c.messages == nil {
		return
	}

	_, err := c.messages.AppendMessage(store.Message{
		ChatID:  c.chatID,
		Role:    string(role),
		Content: content,
		Emotion: string(tone),
	})
	if err != nil {
		logger.Warn("Failed to persist message", "error", err)
	}
}
