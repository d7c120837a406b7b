package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"server/internal/generation"
	"server/internal/middleware"
)

type generateRequest struct {
	ContextImageURL string `json:"contextImageUrl"`
	UserPrompt      string `json:"userPrompt"`
	SessionID       string `json:"sessionId"`
	SaveImageURL    string `json:"saveImageUrl"`
	IsRegenerate    bool   `json:"isRegenerate"`
	DeleteMessageID string `json:"deleteMessageId"`
	ModelID         string `json:"modelId"`
}

type generateResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	VideoURL  string `json:"videoUrl,omitempty"`
	AudioURL  string `json:"audioUrl,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Script    string `json:"script,omitempty"`
	Content   string `json:"content,omitempty"`
}

// GenerateVideo runs the full video pipeline for one turn.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, a.Generator.GenerateVideo)
}

// GenerateImage runs the image variant.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, a.Generator.GenerateImage)
}

// Chat runs the conversational marketing-copy variant.
func (a *App) Chat(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, a.Generator.Chat)
}

func (a *App) generate(w http.ResponseWriter, r *http.Request, run func(context.Context, generation.Request) (*generation.Result, error)) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := run(r.Context(), generation.Request{
		UserID:          middleware.UserIDFromContext(r.Context()),
		Prompt:          body.UserPrompt,
		SessionID:       body.SessionID,
		ContextImageURL: body.ContextImageURL,
		SaveImageURL:    body.SaveImageURL,
		Regenerate:      body.IsRegenerate,
		DeleteMessageID: body.DeleteMessageID,
		ModelID:         body.ModelID,
		Locale:          middleware.LocaleFromContext(r.Context()),
	})
	if err != nil {
		a.failErr(w, err)
		return
	}

	// The IDs ride in headers as well so clients can detect stale responses
	// racing a newer turn.
	w.Header().Set("X-Session-Id", result.SessionID)
	w.Header().Set("X-Message-Id", result.MessageID)
	a.json(w, http.StatusOK, generateResponse{
		Success:   true,
		SessionID: result.SessionID,
		MessageID: result.MessageID,
		VideoURL:  result.VideoURL,
		AudioURL:  result.AudioURL,
		ImageURL:  result.ImageURL,
		Script:    result.Script,
		Content:   result.Content,
	})
}
