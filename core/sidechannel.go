package pipeline

import (
	"strings"

	"github.com/chatpot/chatpot-core/core/avatar"
	"github.com/chatpot/chatpot-core/core/emotion"
)

// sideChannel feeds streamed text to the emotion classifier and forwards
// confident results to the avatar. Pushes never block the stream: deltas go
// into an ordered buffer drained by a single goroutine, so expression updates
// are applied in the order of the text they were derived from.
type sideChannel struct {
	renderer avatar.Collaborator
	mbti     string

	buffer *deltaBuffer
	done   chan struct{}

	lastApplied emotion.Emotion
}

func newSideChannel(renderer avatar.Collaborator, mbti string) *sideChannel {
	if renderer == nil {
		renderer = avatar.Noop{}
	}

	s := &sideChannel{
		renderer: renderer,
		mbti:     mbti,
		buffer:   newDeltaBuffer(),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Push hands one streamed delta to the classifier goroutine.
func (s *sideChannel) Push(delta string) {
	s.buffer.Add(delta)
}

// Finish marks the stream complete, waits for the consumer to drain, and runs
// one final classification over the full text.
func (s *sideChannel) Finish() emotion.Analysis {
	s.buffer.Complete()
	<-s.done

	analysis := s.classify(s.buffer.String())
	s.apply(analysis)
	return analysis
}

// Abort discards whatever is still buffered and stops the consumer.
func (s *sideChannel) Abort() {
	s.buffer.Clear()
	<-s.done
}

func (s *sideChannel) run() {
	defer close(s.done)

	var accumulated strings.Builder
	s.buffer.Deltas(func(delta string) bool {
		accumulated.WriteString(delta)
		s.apply(s.classify(accumulated.String()))
		return true
	})
}

func (s *sideChannel) classify(text string) emotion.Analysis {
	analysis := emotion.Classify(text)
	if s.mbti != "" {
		analysis = emotion.AdjustForMBTI(analysis, s.mbti)
	}
	return analysis
}

// apply forwards a classification to the avatar when it clears the confidence
// threshold. Short partial fragments rarely clear it, which keeps the
// expression from flapping mid-stream.
func (s *sideChannel) apply(analysis emotion.Analysis) {
	if analysis.Confidence < emotion.ApplyThreshold {
		return
	}
	if analysis.Emotion == s.lastApplied {
		return
	}

	s.lastApplied = analysis.Emotion
	if err := s.renderer.SetExpression(string(emotion.ExpressionFor(analysis.Emotion))); err != nil {
		logger.Warn("Failed to set avatar expression", "error", err)
	}
}
