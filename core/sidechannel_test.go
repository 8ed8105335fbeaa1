package pipeline

import (
	"testing"

	"github.com/chatpot/chatpot-core/core/emotion"
)

func TestDeltaBufferYieldsInArrivalOrder(t *testing.T) {
	buffer := newDeltaBuffer()

	collected := make(chan []string)
	go func() {
		var deltas []string
		buffer.Deltas(func(delta string) bool {
			deltas = append(deltas, delta)
			return true
		})
		collected <- deltas
	}()

	want := []string{"one", "two", "three", "four"}
	for _, delta := range want {
		buffer.Add(delta)
	}
	buffer.Complete()

	got := <-collected
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
	if buffer.String() != "onetwothreefour" {
		t.Fatalf("Expected the accumulated text, got %q", buffer.String())
	}
}

func TestDeltaBufferClearAbortsConsumer(t *testing.T) {
	buffer := newDeltaBuffer()
	buffer.Add("pending")

	done := make(chan struct{})
	go func() {
		defer close(done)
		buffer.Deltas(func(string) bool { return true })
	}()

	buffer.Clear()
	<-done
}

func TestSideChannelAppliesTaggedEmotion(t *testing.T) {
	renderer := &recordingAvatar{}
	side := newSideChannel(renderer, "")

	side.Push("[emotion:happy]")
	side.Push("开心极了")
	analysis := side.Finish()

	if analysis.Emotion != emotion.Happy {
		t.Fatalf("Expected %q, got %q", emotion.Happy, analysis.Emotion)
	}
	if analysis.Confidence != 1.0 {
		t.Fatalf("Expected confidence 1.0 for a tagged emotion, got %v", analysis.Confidence)
	}

	expressions := renderer.appliedExpressions()
	if len(expressions) == 0 || expressions[len(expressions)-1] != "smile" {
		t.Fatalf("Expected the avatar to end on %q, got %v", "smile", expressions)
	}
}

func TestSideChannelHoldsBackLowConfidence(t *testing.T) {
	renderer := &recordingAvatar{}
	side := newSideChannel(renderer, "")

	side.Push("今天")
	side.Push("天气不冷不热")
	side.Finish()

	if expressions := renderer.appliedExpressions(); len(expressions) != 0 {
		t.Fatalf("Expected no expression below the confidence threshold, got %v", expressions)
	}
}

func TestSideChannelDoesNotRepeatExpression(t *testing.T) {
	renderer := &recordingAvatar{}
	side := newSideChannel(renderer, "")

	side.Push("[emotion:happy]太好了")
	side.Push("，真的太好了")
	side.Finish()

	if expressions := renderer.appliedExpressions(); len(expressions) != 1 {
		t.Fatalf("Expected a single expression update for a stable emotion, got %v", expressions)
	}
}

func TestSideChannelAbortSkipsFinalClassification(t *testing.T) {
	renderer := &recordingAvatar{}
	side := newSideChannel(renderer, "")

	side.Abort()

	if expressions := renderer.appliedExpressions(); len(expressions) != 0 {
		t.Fatalf("Expected no expression after an abort, got %v", expressions)
	}
}
