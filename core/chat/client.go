package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chatpot/chatpot-core/core/stream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// Client talks to the chat-completion collaborator. The collaborator
// accepts the conversation as JSON and answers with an event-framed byte
// stream of text deltas terminated by the reserved end marker.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxHistory int
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithMaxHistory overrides how many recent messages are submitted upstream.
func WithMaxHistory(max int) ClientOption {
	return func(c *Client) { c.maxHistory = max }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		maxHistory: defaultMaxHistory,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}
	return c
}

// Tone travels inside the system prompt, not as a request field.
type requestBody struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Complete prepares a streamed completion over the conversation. No network
// traffic happens until the returned stream's Chunks iterator is consumed.
func (c *Client) Complete(messages []Message, tone Tone) *Stream {
	return &Stream{
		client:   c,
		messages: assemble(messages, tone, c.maxHistory),
	}
}

// Stream is a lazy, single-use completion response.
type Stream struct {
	client   *Client
	messages []Message
}

// Chunks issues the request and yields the decoded deltas in order. The
// response body is closed when iteration ends, whether by terminal marker,
// error, or early break.
func (s *Stream) Chunks(ctx context.Context) func(func(stream.Chunk, error) bool) {
	return func(yield func(stream.Chunk, error) bool) {
		ctx, span := tracer.Start(ctx, "complete conversation stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))
		span.SetAttributes(attribute.Int("request.messages", len(s.messages)))

		requestBodyBytes, err := json.Marshal(requestBody{
			Model:    s.client.model,
			Messages: s.messages,
			Stream:   true,
		})
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(stream.Chunk{}, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.endpoint, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(stream.Chunk{}, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		if s.client.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.client.apiKey)
		}

		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			yield(stream.Chunk{}, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			yield(stream.Chunk{}, err)
			return
		}

		stream.NewDecoder(resp.Body).Chunks(ctx)(yield)
	}
}
