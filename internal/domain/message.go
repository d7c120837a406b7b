package domain

import "time"

// Role enumerates message authors within a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation row. Artifact URLs are filled in depending on
// which generation mode produced the assistant reply; Content carries either
// plain text or the narration script for video turns.
type Message struct {
	ID        string
	SessionID string
	UserID    string
	Role      Role
	Content   string
	ImageURL  string
	VideoURL  string
	AudioURL  string
	CreatedAt time.Time
}
