package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chatpot/chatpot-core/core/texttospeech"
)

const (
	baseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultVoice = "21m00Tcm4TlvDq8ikWAM"
	modelID      = "eleven_multilingual_v2"
)

// Client synthesizes text through the ElevenLabs HTTP endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL overrides the synthesis endpoint, primarily for tests.
func WithBaseURL(endpoint string) ClientOption {
	return func(c *Client) { c.baseURL = endpoint }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*texttospeech.Synthesis, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	apiKey, ok := os.LookupEnv("ELEVENLABS_API_KEY")
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not found")
	}

	options := &texttospeech.SynthesisOptions{Voice: defaultVoice}
	for _, opt := range opts {
		opt(options)
	}
	span.SetAttributes(attribute.String("request.voice", options.Voice))

	requestBodyBytes, err := json.Marshal(struct {
		Text    string `json:"text"`
		ModelID string `json:"model_id"`
	}{Text: text, ModelID: modelID})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+options.Voice, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading synthesized audio: %w", err)
		span.RecordError(err)
		return nil, err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	return &texttospeech.Synthesis{Audio: audio, MIMEType: mimeType}, nil
}
