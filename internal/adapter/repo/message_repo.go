package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// MessageRepositoryPG implements domain.MessageRepository using PostgreSQL.
type MessageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewMessageRepository constructs a new message repository instance.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepositoryPG {
	return &MessageRepositoryPG{pool: pool}
}

// Insert persists one conversation row.
func (r *MessageRepositoryPG) Insert(ctx context.Context, message *domain.Message) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO messages (id, session_id, user_id, role, content, image_url, video_url, audio_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`, message.ID, message.SessionID, message.UserID, message.Role, message.Content, message.ImageURL, message.VideoURL, message.AudioURL)
	return err
}

// Delete removes a single message. Missing rows are not an error; the
// regeneration path deletes opportunistically.
func (r *MessageRepositoryPG) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
DELETE FROM messages
WHERE id = $1;
`, id)
	return err
}

// ListBySession returns the session's messages oldest-first.
func (r *MessageRepositoryPG) ListBySession(ctx context.Context, sessionID, userID string) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, session_id, user_id, role, content, image_url, video_url, audio_url, created_at
FROM messages
WHERE session_id = $1 AND user_id = $2
ORDER BY created_at ASC;
`, sessionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var message domain.Message
		if err := rows.Scan(&message.ID, &message.SessionID, &message.UserID, &message.Role, &message.Content, &message.ImageURL, &message.VideoURL, &message.AudioURL, &message.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
