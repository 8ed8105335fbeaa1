package emotion

import (
	"reflect"
	"testing"
)

func TestClassifyInlineTagWinsOverKeywords(t *testing.T) {
	// The text also contains sad keywords; the tag must win regardless.
	analysis := Classify("[emotion:happy]开心极了，虽然有些难过难过难过")

	if analysis.Emotion != Happy {
		t.Fatalf("expected tagged emotion happy, got %q", analysis.Emotion)
	}
	if analysis.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0 for tagged emotion, got %v", analysis.Confidence)
	}
}

func TestStripTagsRemovesMarkerForDisplay(t *testing.T) {
	if got := StripTags("[emotion:happy]开心极了"); got != "开心极了" {
		t.Fatalf("expected tag stripped, got %q", got)
	}
	if got := StripTags("no tags here"); got != "no tags here" {
		t.Fatalf("expected untagged text unchanged, got %q", got)
	}
	if got := StripTags("[EMOTION:Sad]前缀 [emotion:happy]后缀"); got != "前缀 后缀" {
		t.Fatalf("expected all tags stripped, got %q", got)
	}
}

func TestExtractTagRejectsUnknownEmotion(t *testing.T) {
	if _, ok := ExtractTag("[emotion:melancholy]text"); ok {
		t.Fatalf("expected unknown emotion tag to be rejected")
	}
	if tagged, ok := ExtractTag("[emotion:SURPRISED]!"); !ok || tagged != Surprised {
		t.Fatalf("expected case-insensitive known tag, got %q ok=%v", tagged, ok)
	}
}

func TestAnalyzeScoresKeywords(t *testing.T) {
	analysis := Analyze("哈哈，太好了，我很开心")
	if analysis.Emotion != Happy {
		t.Fatalf("expected happy, got %q", analysis.Emotion)
	}
	if analysis.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", analysis.Confidence)
	}
	if len(analysis.Keywords) == 0 {
		t.Fatalf("expected triggering keywords to be reported")
	}
}

func TestAnalyzeNeutralWhenNothingMatches(t *testing.T) {
	analysis := Analyze("这是一段平平无奇的陈述。")
	if analysis.Emotion != Neutral {
		t.Fatalf("expected neutral, got %q", analysis.Emotion)
	}
	if analysis.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", analysis.Confidence)
	}
}

func TestAnalyzeConfidenceIsCapped(t *testing.T) {
	analysis := Analyze("开心开心开心开心开心开心开心开心")
	if analysis.Confidence != 1 {
		t.Fatalf("expected confidence capped at 1, got %v", analysis.Confidence)
	}
}

func TestShortPartialFragmentStaysBelowThreshold(t *testing.T) {
	// A lone weak keyword inside a longer English sentence should not
	// clear the apply threshold that gates expression updates.
	analysis := Analyze("well let me see this is quite a long sentence with 棒 inside it somewhere near the end")
	if analysis.Confidence >= ApplyThreshold {
		t.Fatalf("expected confidence below threshold, got %v", analysis.Confidence)
	}
}

func TestExpressionMapping(t *testing.T) {
	cases := map[Emotion]Expression{
		Happy:     ExpressionSmile,
		Excited:   ExpressionSmile,
		Sad:       ExpressionSad,
		Angry:     ExpressionAngry,
		Surprised: ExpressionSurprised,
		Confused:  ExpressionEmbarrassed,
		Thinking:  ExpressionDefault,
		Neutral:   ExpressionDefault,
	}
	for e, want := range cases {
		if got := ExpressionFor(e); got != want {
			t.Fatalf("expected %q to map to %q, got %q", e, want, got)
		}
	}
	if got := ExpressionFor(Emotion("unknown")); got != ExpressionDefault {
		t.Fatalf("expected unknown emotion to fall back to default, got %q", got)
	}
}

func TestAdjustForMBTIBoostsMatchingLeaning(t *testing.T) {
	adjusted := AdjustForMBTI(Analysis{Emotion: Thinking, Confidence: 0.5, Keywords: []string{"思考"}}, "intj")
	if adjusted.Emotion != Thinking {
		t.Fatalf("expected emotion kept, got %q", adjusted.Emotion)
	}
	if adjusted.Confidence <= 0.5 {
		t.Fatalf("expected boosted confidence, got %v", adjusted.Confidence)
	}
	if len(adjusted.Keywords) != 1 || adjusted.Keywords[0] != "思考" {
		t.Fatalf("expected triggering keywords kept, got %v", adjusted.Keywords)
	}
}

func TestAdjustForMBTIFallsBackOnWeakDetection(t *testing.T) {
	adjusted := AdjustForMBTI(Analysis{Emotion: Angry, Confidence: 0.1, Keywords: []string{"气死"}}, "ENFP")
	if adjusted.Emotion != Excited {
		t.Fatalf("expected profile default emotion, got %q", adjusted.Emotion)
	}
	if adjusted.Confidence != 0.5 {
		t.Fatalf("expected fallback confidence 0.5, got %v", adjusted.Confidence)
	}
	if len(adjusted.Keywords) != 1 || adjusted.Keywords[0] != "气死" {
		t.Fatalf("expected triggering keywords kept, got %v", adjusted.Keywords)
	}
}

func TestAdjustForMBTIUnknownProfileIsNoOp(t *testing.T) {
	original := Analysis{Emotion: Sad, Confidence: 0.2}
	if adjusted := AdjustForMBTI(original, "XXXX"); !reflect.DeepEqual(adjusted, original) {
		t.Fatalf("expected unknown profile to leave analysis unchanged, got %#v", adjusted)
	}
}
