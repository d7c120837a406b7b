package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
)

type sessionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type messageResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	ImageURL  string `json:"imageUrl,omitempty"`
	VideoURL  string `json:"videoUrl,omitempty"`
	AudioURL  string `json:"audioUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// ListSessions returns the authed user's sessions newest-first.
func (a *App) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessions, err := a.Sessions.ListByUser(r.Context(), userID)
	if err != nil {
		a.failErr(w, err)
		return
	}
	items := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionResponse{
			ID:        s.ID,
			Name:      s.Name,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "sessions": items})
}

// SessionMessages returns the session's messages oldest-first.
func (a *App) SessionMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		a.fail(w, http.StatusBadRequest, "session id required")
		return
	}
	if _, err := a.Sessions.GetByID(r.Context(), sessionID, userID); err != nil {
		a.failErr(w, err)
		return
	}
	messages, err := a.Messages.ListBySession(r.Context(), sessionID, userID)
	if err != nil {
		a.failErr(w, err)
		return
	}
	items := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		items = append(items, toMessageResponse(m))
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "messages": items})
}

// DeleteSession removes a session and, via cascade, its messages.
func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.fail(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		a.fail(w, http.StatusBadRequest, "session id required")
		return
	}
	if err := a.Sessions.Delete(r.Context(), sessionID, userID); err != nil {
		a.failErr(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		VideoURL:  m.VideoURL,
		AudioURL:  m.AudioURL,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
