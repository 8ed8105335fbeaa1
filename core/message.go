package pipeline

import (
	"sync"

	"github.com/jinzhu/copier"

	"github.com/chatpot/chatpot-core/core/chat"
	"github.com/chatpot/chatpot-core/core/emotion"
)

// Message is one entry of the in-memory conversation sequence. Assistant
// content grows incrementally while its turn is streaming and is immutable
// once the turn completes.
type Message struct {
	Role    chat.Role
	Content string
	Emotion emotion.Emotion
}

// conversation is the ordered message sequence of one conversation context.
// Mutation is confined to the active turn; readers get snapshots.
type conversation struct {
	mu       sync.RWMutex
	messages []Message
}

func (c *conversation) append(message Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

// amendLast replaces the content of the most recent message. Used to grow the
// assistant message while its turn is the active streaming turn.
func (c *conversation) amendLast(content string, tone emotion.Emotion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return
	}
	last := &c.messages[len(c.messages)-1]
	last.Content = content
	if tone != "" {
		last.Emotion = tone
	}
}

// dropLast removes the most recent message. Used to retract the assistant
// placeholder when its stream fails before producing any text.
func (c *conversation) dropLast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return
	}
	c.messages = c.messages[:len(c.messages)-1]
}

// history converts the sequence into the wire shape the completion
// collaborator expects.
func (c *conversation) history() []chat.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]chat.Message, 0, len(c.messages))
	for _, message := range c.messages {
		history = append(history, chat.Message{Role: message.Role, Content: message.Content})
	}
	return history
}

// Snapshot returns a point-in-time copy of the conversation sequence.
func (c *conversation) Snapshot() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make([]Message, 0, len(c.messages))
	if err := copier.CopyWithOption(&snapshot, &c.messages, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("Failed to snapshot conversation", "error", err)
		return nil
	}
	return snapshot
}
