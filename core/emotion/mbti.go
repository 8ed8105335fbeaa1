package emotion

import "strings"

// mbtiProfiles lists, per personality type, the emotions that type leans
// towards. Used to bias low-confidence classifications for profiles that
// declare an MBTI.
var mbtiProfiles = map[string][]Emotion{
	"INTJ": {Thinking, Neutral, Confused},
	"INTP": {Thinking, Surprised, Confused},
	"ENTJ": {Excited, Thinking, Neutral},
	"ENTP": {Excited, Happy, Surprised},

	"INFJ": {Happy, Sad, Thinking},
	"INFP": {Happy, Sad, Excited},
	"ENFJ": {Happy, Excited, Surprised},
	"ENFP": {Excited, Happy, Surprised},

	"ISTJ": {Neutral, Thinking, Confused},
	"ISFJ": {Happy, Sad, Neutral},
	"ESTJ": {Neutral, Angry, Thinking},
	"ESFJ": {Happy, Excited, Sad},

	"ISTP": {Neutral, Thinking, Surprised},
	"ISFP": {Happy, Sad, Excited},
	"ESTP": {Excited, Happy, Angry},
	"ESFP": {Excited, Happy, Surprised},
}

// AdjustForMBTI biases an analysis towards the given personality type:
// confidence is boosted when the detected emotion matches the profile's
// leanings, and weak detections fall back to the profile's dominant emotion.
func AdjustForMBTI(analysis Analysis, mbti string) Analysis {
	profile, ok := mbtiProfiles[strings.ToUpper(mbti)]
	if !ok {
		return analysis
	}

	for _, leaning := range profile {
		if analysis.Emotion == leaning {
			analysis.Confidence *= 1.2
			if analysis.Confidence > 1 {
				analysis.Confidence = 1
			}
			return analysis
		}
	}

	if analysis.Confidence < 0.3 {
		return Analysis{Emotion: profile[0], Confidence: 0.5, Keywords: analysis.Keywords}
	}

	return analysis
}
