package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startRendererStub(t *testing.T) (string, <-chan command) {
	t.Helper()

	received := make(chan command, 16)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var cmd command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			received <- cmd
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http"), received
}

func receiveCommand(t *testing.T, ch <-chan command) command {
	t.Helper()
	select {
	case cmd := <-ch:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for renderer command")
		return command{}
	}
}

func TestWSBridgeSendsRendererCommands(t *testing.T) {
	bridgeURL, received := startRendererStub(t)

	bridge, err := Dial(context.Background(), bridgeURL)
	if err != nil {
		t.Fatalf("failed to dial renderer: %v", err)
	}
	defer bridge.Close()

	if err := bridge.SetExpression("smile"); err != nil {
		t.Fatalf("SetExpression failed: %v", err)
	}
	cmd := receiveCommand(t, received)
	if cmd.Type != commandSetExpression || cmd.Expression != "smile" {
		t.Fatalf("unexpected command: %#v", cmd)
	}

	if err := bridge.PlayMotion("idle", 2); err != nil {
		t.Fatalf("PlayMotion failed: %v", err)
	}
	cmd = receiveCommand(t, received)
	if cmd.Type != commandPlayMotion || cmd.Group != "idle" || cmd.Index != 2 {
		t.Fatalf("unexpected command: %#v", cmd)
	}

	if err := bridge.Speak(true); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	cmd = receiveCommand(t, received)
	if cmd.Type != commandSpeak || !cmd.Speaking {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestDialFailsWhenRendererUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := Dial(ctx, "ws://127.0.0.1:1/renderer"); err == nil {
		t.Fatalf("expected dial failure for unreachable renderer")
	}
}

func TestNoopCollaboratorAcceptsEverything(t *testing.T) {
	var collaborator Collaborator = Noop{}
	if err := collaborator.SetExpression("smile"); err != nil {
		t.Fatalf("noop SetExpression errored: %v", err)
	}
	if err := collaborator.PlayMotion("idle", 0); err != nil {
		t.Fatalf("noop PlayMotion errored: %v", err)
	}
	if err := collaborator.Speak(false); err != nil {
		t.Fatalf("noop Speak errored: %v", err)
	}
}
