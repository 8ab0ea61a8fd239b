package model

import (
	"time"

	"portfolio-ai/backend/internal/marker"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a conversation. The order of messages in a
// conversation is chronological and is sent upstream as-is.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Split is the last thought/answer segmentation computed for this message
	// while it streamed in. It is derived from Content and never persisted.
	Split *marker.Split `json:"-"`
}

// Transcript is a persisted copy of a conversation.
type Transcript struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TranscriptSummary is the listing view of a Transcript.
type TranscriptSummary struct {
	ID           string    `json:"id"`
	Profile      string    `json:"profile"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
