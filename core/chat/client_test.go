package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatpot/chatpot-core/core/stream"
)

func collectDeltas(t *testing.T, s *Stream) (string, bool, error) {
	t.Helper()
	var assembled strings.Builder
	var done bool
	var streamErr error
	s.Chunks(context.Background())(func(chunk stream.Chunk, err error) bool {
		if err != nil {
			streamErr = err
			return false
		}
		if chunk.Done {
			done = true
			return false
		}
		assembled.WriteString(chunk.Delta)
		return true
	})
	return assembled.String(), done, streamErr
}

func TestCompleteStreamsDecodedDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: 你好\n\ndata: ，世界\n\nevent: done\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, done, err := collectDeltas(t, client.Complete([]Message{{Role: RoleUser, Content: "hi"}}, ToneFriendly))
	if err != nil {
		t.Fatalf("expected clean stream, got %v", err)
	}
	if !done {
		t.Fatalf("expected terminal marker")
	}
	if text != "你好，世界" {
		t.Fatalf("expected assembled reply %q, got %q", "你好，世界", text)
	}
}

func TestCompleteSubmitsSystemPromptsAndHistory(t *testing.T) {
	var received requestBody
	var rawBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		if rawBody, err = io.ReadAll(r.Body); err != nil {
			t.Errorf("failed to read request body: %v", err)
		}
		if err := json.Unmarshal(rawBody, &received); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, WithModel("gpt-4o-mini"), WithAPIKey("secret"))
	_, _, err := collectDeltas(t, client.Complete([]Message{
		{Role: RoleUser, Content: "第一条"},
		{Role: RoleAssistant, Content: "回复"},
		{Role: RoleUser, Content: "第二条"},
	}, ToneFormal))
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	if received.Model != "gpt-4o-mini" {
		t.Fatalf("expected model forwarded, got %q", received.Model)
	}
	if !received.Stream {
		t.Fatalf("expected streaming requested")
	}
	if len(received.Messages) != 5 {
		t.Fatalf("expected 2 system + 3 history messages, got %d", len(received.Messages))
	}
	if received.Messages[0].Role != RoleSystem || !strings.Contains(received.Messages[0].Content, "正式") {
		t.Fatalf("expected tone-bearing system prompt first, got %#v", received.Messages[0])
	}
	if received.Messages[1].Role != RoleSystem || !strings.Contains(received.Messages[1].Content, "安全要求") {
		t.Fatalf("expected safety prompt second, got %#v", received.Messages[1])
	}
	if received.Messages[4].Content != "第二条" {
		t.Fatalf("expected history order preserved, got %#v", received.Messages[2:])
	}
	if strings.Contains(string(rawBody), `"tone"`) {
		t.Fatalf("expected tone to travel only in the system prompt, got body %s", rawBody)
	}
}

func TestCompleteTruncatesLongHistory(t *testing.T) {
	var received requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var history []Message
	for i := range 20 {
		history = append(history, Message{Role: RoleUser, Content: fmt.Sprintf("message %d", i)})
	}

	client := NewClient(server.URL, WithMaxHistory(3))
	if _, _, err := collectDeltas(t, client.Complete(history, ToneFriendly)); err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	if len(received.Messages) != 5 {
		t.Fatalf("expected 2 system + 3 recent messages, got %d", len(received.Messages))
	}
	if received.Messages[2].Content != "message 17" {
		t.Fatalf("expected oldest kept message to be 'message 17', got %q", received.Messages[2].Content)
	}
}

func TestCompleteSurfacesNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, _, err := collectDeltas(t, client.Complete([]Message{{Role: RoleUser, Content: "hi"}}, ToneFriendly))
	if err == nil || !strings.Contains(err.Error(), "non-OK HTTP status") {
		t.Fatalf("expected non-OK status error, got %v", err)
	}
}

func TestCompletePreservesDeltasBeforeTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: 部分\n\n")
		flusher.Flush()
		// Drop the connection without the terminal marker.
		conn, _, _ := w.(http.Hijacker).Hijack()
		conn.Close()
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, done, err := collectDeltas(t, client.Complete([]Message{{Role: RoleUser, Content: "hi"}}, ToneFriendly))
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if done {
		t.Fatalf("expected no terminal marker on failure")
	}
	if text != "部分" {
		t.Fatalf("expected partial delta preserved, got %q", text)
	}
}
