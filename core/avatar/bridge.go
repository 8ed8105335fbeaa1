package avatar

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// command is the wire format sent to the renderer. One JSON object per
// websocket text message.
type command struct {
	Type       string `json:"type"`
	Expression string `json:"expression,omitempty"`
	Group      string `json:"group,omitempty"`
	Index      int    `json:"index,omitempty"`
	Speaking   bool   `json:"speaking,omitempty"`
}

const (
	commandSetExpression = "setExpression"
	commandPlayMotion    = "playMotion"
	commandSpeak         = "speak"
)

// WSBridge drives a renderer connected over a websocket.
type WSBridge struct {
	conn *websocket.Conn

	connMu sync.Mutex
}

// Dial connects to a renderer listening at the given websocket URL.
func Dial(ctx context.Context, bridgeURL string) (*WSBridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, bridgeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to renderer: %w", err)
	}
	return &WSBridge{conn: conn}, nil
}

func (b *WSBridge) SetExpression(name string) error {
	return b.send(command{Type: commandSetExpression, Expression: name})
}

func (b *WSBridge) PlayMotion(group string, index int) error {
	return b.send(command{Type: commandPlayMotion, Group: group, Index: index})
}

func (b *WSBridge) Speak(speaking bool) error {
	return b.send(command{Type: commandSpeak, Speaking: speaking})
}

func (b *WSBridge) send(cmd command) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if err := b.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("failed to write to renderer: %w", err)
	}
	return nil
}

func (b *WSBridge) Close() error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}
