package domain

import "context"

// SessionRepository defines persistence for conversation sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id, userID string) (*Session, error)
	// ListByUser returns the user's sessions newest-first.
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	// Delete removes a session and cascades to its messages.
	Delete(ctx context.Context, id, userID string) error
}

// MessageRepository defines persistence for conversation messages.
type MessageRepository interface {
	Insert(ctx context.Context, message *Message) error
	Delete(ctx context.Context, id string) error
	// ListBySession returns messages oldest-first for conversation replay.
	ListBySession(ctx context.Context, sessionID, userID string) ([]Message, error)
}

// ObjectStore persists generated binary artifacts. Generated media arrives on
// ephemeral provider URLs; ownership transfers here immediately so artifacts
// survive the provider's signed-URL expiry.
type ObjectStore interface {
	// Upload stores data under the given key and returns the canonical key.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PublicURL maps a storage key to a client-reachable URL.
	PublicURL(key string) string
}
