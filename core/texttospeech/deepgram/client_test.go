package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatpot/chatpot-core/core/texttospeech"
)

func TestSynthesizeReturnsAudioWithDeclaredMIMEType(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	var gotModel, gotAuth string
	var gotBody struct {
		Text string `json:"text"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotModel = r.URL.Query().Get("model")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	synthesis, err := client.Synthesize(context.Background(), "你好，世界", texttospeech.WithVoice("aura-luna-en"))
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}

	if string(synthesis.Audio) != "mp3-bytes" {
		t.Fatalf("expected audio buffer returned, got %q", synthesis.Audio)
	}
	if synthesis.MIMEType != "audio/mpeg" {
		t.Fatalf("expected declared MIME type, got %q", synthesis.MIMEType)
	}
	if gotModel != "aura-luna-en" {
		t.Fatalf("expected voice forwarded as model, got %q", gotModel)
	}
	if gotAuth != "Token test-key" {
		t.Fatalf("expected token auth header, got %q", gotAuth)
	}
	if gotBody.Text != "你好，世界" {
		t.Fatalf("expected text submitted verbatim, got %q", gotBody.Text)
	}
}

func TestSynthesizeSurfacesNonOKStatus(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Synthesize(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "non-OK HTTP status") {
		t.Fatalf("expected non-OK status error, got %v", err)
	}
}

func TestSynthesizeRequiresAPIKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")

	client := NewClient(WithBaseURL("http://localhost:0"))
	if _, err := client.Synthesize(context.Background(), "text"); err == nil {
		t.Fatalf("expected missing api key error")
	}
}
