package domain

import "time"

// Session groups the messages of one conversation. It is created lazily on the
// first message of a conversation and never mutated afterwards.
type Session struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}
