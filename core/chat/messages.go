// Package chat is the client for the chat-completion collaborator: it
// submits an ordered, role-tagged conversation and exposes the response as
// a decoded delta stream.
package chat

// Role tags a message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of the submitted conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Tone selects the assistant's register.
type Tone string

const (
	ToneFriendly Tone = "friendly"
	ToneFormal   Tone = "formal"
)

// defaultMaxHistory bounds how much of the conversation is submitted
// upstream. Only the most recent messages are kept.
const defaultMaxHistory = 12

func truncate(messages []Message, max int) []Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	return messages[len(messages)-max:]
}
