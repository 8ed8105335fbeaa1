// Package emotion classifies generated text into a fixed set of emotions to
// drive the avatar's expression. Classification is a pure function with no
// I/O: an explicit inline tag embedded in the text wins outright, otherwise
// a keyword-frequency score over the text decides.
package emotion

import (
	"regexp"
	"strings"
)

// Emotion is one of the fixed emotions the avatar can express.
type Emotion string

const (
	Neutral   Emotion = "neutral"
	Happy     Emotion = "happy"
	Sad       Emotion = "sad"
	Angry     Emotion = "angry"
	Surprised Emotion = "surprised"
	Confused  Emotion = "confused"
	Excited   Emotion = "excited"
	Thinking  Emotion = "thinking"
)

// Expression is a named avatar expression understood by the render
// collaborator.
type Expression string

const (
	ExpressionDefault     Expression = "default"
	ExpressionSmile       Expression = "smile"
	ExpressionSad         Expression = "sad"
	ExpressionAngry       Expression = "angry"
	ExpressionSurprised   Expression = "surprised"
	ExpressionEmbarrassed Expression = "embarrassed"
)

// ApplyThreshold is the minimum confidence at which a classification is
// forwarded to the expression side. Short partial fragments rarely clear it,
// which keeps the avatar from flapping mid-stream.
const ApplyThreshold = 0.4

// Analysis is the result of classifying a piece of text.
type Analysis struct {
	Emotion    Emotion
	Confidence float64
	Keywords   []string
}

var keywordBuckets = map[Emotion][]string{
	Happy: {
		"开心", "高兴", "快乐", "哈哈", "😊", "😄", "太好了", "不错", "棒",
		"喜欢", "爱", "满意", "愉快", "欣喜",
	},
	Sad: {
		"难过", "伤心", "悲伤", "😢", "😭", "遗憾", "失望", "沮丧",
		"不开心", "郁闷", "难受", "痛苦",
	},
	Angry: {
		"生气", "愤怒", "😠", "😡", "讨厌", "烦", "气死了", "可恶",
		"恼火", "不爽", "暴躁",
	},
	Surprised: {
		"惊讶", "震惊", "😮", "😲", "哇", "天哪", "不会吧", "真的吗",
		"意外", "没想到", "竟然",
	},
	Confused: {
		"困惑", "疑惑", "不明白", "不懂", "不理解", "怎么回事",
		"为什么", "奇怪", "迷茫",
	},
	Excited: {
		"兴奋", "激动", "✨", "🎉", "太棒了", "好耶", "赞", "超级",
		"极了", "热血",
	},
	Thinking: {
		"思考", "想想", "考虑", "🤔", "让我想想", "这样啊",
		"分析", "琢磨", "研究",
	},
	Neutral: {},
}

var expressionByEmotion = map[Emotion]Expression{
	Neutral:   ExpressionDefault,
	Happy:     ExpressionSmile,
	Sad:       ExpressionSad,
	Angry:     ExpressionAngry,
	Surprised: ExpressionSurprised,
	Confused:  ExpressionEmbarrassed,
	Excited:   ExpressionSmile,
	Thinking:  ExpressionDefault,
}

var tagPattern = regexp.MustCompile(`(?i)\[emotion:(\w+)\]`)

// Classify returns the analysis the side channel applies: an inline tag, if
// present and valid, with full confidence, otherwise the keyword score.
func Classify(text string) Analysis {
	if tagged, ok := ExtractTag(text); ok {
		return Analysis{Emotion: tagged, Confidence: 1.0}
	}
	return Analyze(text)
}

// Analyze scores text against the keyword buckets and returns the
// highest-scoring emotion with a keyword-density confidence.
func Analyze(text string) Analysis {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return Analysis{Emotion: Neutral}
	}

	best := Neutral
	bestScore := 0
	var matched []string
	for _, candidate := range scoringOrder {
		score := 0
		for _, keyword := range keywordBuckets[candidate] {
			count := strings.Count(cleaned, keyword)
			if count > 0 {
				score += count
				matched = append(matched, keyword)
			}
		}
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if bestScore == 0 {
		return Analysis{Emotion: Neutral}
	}

	words := float64(len(strings.Fields(cleaned)))
	confidence := float64(bestScore) / max(words*0.2, 1)
	if confidence > 1 {
		confidence = 1
	}

	return Analysis{Emotion: best, Confidence: confidence, Keywords: matched}
}

// scoringOrder keeps Analyze deterministic when two emotions tie.
var scoringOrder = []Emotion{Happy, Sad, Angry, Surprised, Confused, Excited, Thinking}

// ExtractTag finds an inline [emotion:name] marker and reports whether it
// names a known emotion.
func ExtractTag(text string) (Emotion, bool) {
	match := tagPattern.FindStringSubmatch(text)
	if match == nil {
		return Neutral, false
	}

	tagged := Emotion(strings.ToLower(match[1]))
	if _, ok := keywordBuckets[tagged]; !ok {
		return Neutral, false
	}
	return tagged, true
}

// StripTags removes inline emotion markers so they never reach the display
// or the synthesis collaborator.
func StripTags(text string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}

// ExpressionFor maps an emotion to the avatar expression that renders it.
func ExpressionFor(e Emotion) Expression {
	if expression, ok := expressionByEmotion[e]; ok {
		return expression
	}
	return ExpressionDefault
}
