// Package store is the persistence collaborator: profiles, conversation
// summaries, and messages in an embedded datastore. The handle is
// constructed explicitly and passed to whoever needs it; init and shutdown
// belong to the caller, not to a lazily-created global.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// PreferencesSchemaVersion is bumped whenever the Preferences shape changes,
// so exported data can be migrated on import.
const PreferencesSchemaVersion = 1

// Preferences is the typed per-profile configuration. Keys are enumerated
// here rather than held in an open map, so export/import round-trips are
// well-defined.
type Preferences struct {
	SchemaVersion  int    `json:"schemaVersion"`
	Tone           string `json:"tone,omitempty"`
	Language       string `json:"language,omitempty"`
	Voice          string `json:"voice,omitempty"`
	SpeechProvider string `json:"speechProvider,omitempty"`
	AvatarModel    string `json:"avatarModel,omitempty"`
}

// PreferencesSchema returns the JSON schema describing the current
// preferences shape.
func PreferencesSchema() ([]byte, error) {
	schema := jsonschema.Reflect(&Preferences{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences schema: %w", err)
	}
	return out, nil
}

// Profile is one user profile.
type Profile struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	MBTI        string      `json:"mbti,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Chat is one conversation summary.
type Chat struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one finalized conversation message. Messages are only appended
// after their turn completes, never mid-stream.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Emotion   string    `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
