package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"os"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chatpot/chatpot-core/core/speechtotext"
)

const defaultModel = "nova-3"

// TranscriptionClient transcribes finalized audio buffers through the
// deepgram prerecorded endpoint.
type TranscriptionClient struct {
	rest *api.Client
}

func NewTranscriptionClient() (*TranscriptionClient, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	restClient := listen.NewREST(apiKey, &clientinterfaces.ClientOptions{})
	return &TranscriptionClient{rest: api.New(restClient)}, nil
}

// Transcribe submits one finalized audio buffer and waits for the result.
// Deadlines and cancellation arrive through ctx; the caller owns retry
// decisions.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audioBuffer []byte, opts ...speechtotext.TranscriptionOption) (*speechtotext.Transcription, error) {
	ctx, span := tracer.Start(ctx, "transcribe audio buffer")
	defer span.End()
	span.SetAttributes(attribute.Int("request.audio_bytes", len(audioBuffer)))

	options := &speechtotext.TranscriptionOptions{Model: defaultModel}
	for _, opt := range opts {
		opt(options)
	}

	transcriptionOptions := &clientinterfaces.PreRecordedTranscriptionOptions{
		Model:       options.Model,
		SmartFormat: true,
	}
	if options.Language != "" {
		transcriptionOptions.Language = options.Language
	} else {
		transcriptionOptions.DetectLanguage = true
	}
	if !options.EncodingInfo.IsZero() {
		params, err := queryEncoding(options.EncodingInfo)
		if err != nil {
			return nil, fmt.Errorf("invalid encoding: %w", err)
		}
		transcriptionOptions.Encoding = params.Encoding
		transcriptionOptions.SampleRate = params.SampleRate
		transcriptionOptions.Channels = 1
	}

	response, err := c.rest.FromStream(ctx, bytes.NewReader(audioBuffer), transcriptionOptions)
	if err != nil {
		err = fmt.Errorf("failed to transcribe audio: %w", err)
		span.RecordError(err)
		return nil, err
	}

	if len(response.Results.Channels) == 0 || len(response.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("transcription response contained no alternatives")
	}

	channel := response.Results.Channels[0]
	language := options.Language
	if channel.DetectedLanguage != "" {
		language = channel.DetectedLanguage
	}

	transcription := &speechtotext.Transcription{
		Text:            channel.Alternatives[0].Transcript,
		Language:        language,
		DurationSeconds: response.Metadata.Duration,
	}
	span.SetAttributes(attribute.Float64("response.duration_seconds", transcription.DurationSeconds))

	return transcription, nil
}
