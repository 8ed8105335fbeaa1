// Package speechtotext defines the transcription collaborator boundary: a
// finalized binary audio buffer goes in, recognized text comes back.
package speechtotext

import "github.com/chatpot/chatpot-core/core/audio"

// Transcription is the collaborator's result for one audio buffer.
type Transcription struct {
	Text            string
	Language        string
	DurationSeconds float64
}

type TranscriptionOptions struct {
	// Language hints the expected language; empty enables detection.
	Language string
	Model    string
	MIMEType string

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

func WithMIMEType(mimeType string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.MIMEType = mimeType
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
