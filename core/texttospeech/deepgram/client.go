package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chatpot/chatpot-core/core/texttospeech"
)

const (
	speakURL     = "https://api.deepgram.com/v1/speak"
	defaultVoice = "aura-asteria-en"
)

// Client synthesizes text through the deepgram speak endpoint. One request
// per finalized assistant reply; the whole audio buffer is returned at once.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL overrides the speak endpoint, primarily for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: speakURL,
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

	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	options := &texttospeech.SynthesisOptions{Voice: defaultVoice}
	for _, opt := range opts {
		opt(options)
	}
	span.SetAttributes(attribute.String("request.voice", options.Voice))

	speakEndpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak endpoint: %w", err)
	}
	queryParams := speakEndpoint.Query()
	queryParams.Set("model", options.Voice)
	speakEndpoint.RawQuery = queryParams.Encode()

	requestBodyBytes, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakEndpoint.String(), bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+apiKey)

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
	span.SetAttributes(attribute.Int("response.audio_bytes", len(audio)))

	return &texttospeech.Synthesis{
		Audio:    audio,
		MIMEType: resp.Header.Get("Content-Type"),
	}, nil
}
