package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// SessionRepositoryPG implements domain.SessionRepository using PostgreSQL.
type SessionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSessionRepository constructs a new session repository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepositoryPG {
	return &SessionRepositoryPG{pool: pool}
}

// Create persists a new session row.
func (r *SessionRepositoryPG) Create(ctx context.Context, session *domain.Session) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO sessions (id, user_id, name)
VALUES ($1, $2, $3);
`, session.ID, session.UserID, session.Name)
	return err
}

// GetByID returns the session, scoped to its owner.
func (r *SessionRepositoryPG) GetByID(ctx context.Context, id, userID string) (*domain.Session, error) {
	var session domain.Session
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, created_at
FROM sessions
WHERE id = $1 AND user_id = $2;
`, id, userID).Scan(&session.ID, &session.UserID, &session.Name, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// ListByUser returns the user's sessions newest-first.
func (r *SessionRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, name, created_at
FROM sessions
WHERE user_id = $1
ORDER BY created_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.Name, &session.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes the session; messages go with it via ON DELETE CASCADE.
func (r *SessionRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM sessions
WHERE id = $1 AND user_id = $2;
`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
