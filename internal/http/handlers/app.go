package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/generation"
	"server/internal/infra"
)

// Generator runs one generation turn and reports the produced artifacts.
type Generator interface {
	GenerateVideo(ctx context.Context, req generation.Request) (*generation.Result, error)
	GenerateImage(ctx context.Context, req generation.Request) (*generation.Result, error)
	Chat(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	Logger    *infra.Logger
	Generator Generator
	Sessions  domain.SessionRepository
	Messages  domain.MessageRepository
}

func NewApp(logger *infra.Logger, gen Generator, sessions domain.SessionRepository, messages domain.MessageRepository) *App {
	return &App{Logger: logger, Generator: gen, Sessions: sessions, Messages: messages}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) fail(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]any{"success": false, "error": message})
}

// failErr maps a pipeline error onto the response envelope. Validation and
// auth failures keep their own status codes; everything else is a 500 with
// the error's message so operators can tell a failed job from a timeout.
func (a *App) failErr(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		a.fail(w, http.StatusBadRequest, validationErr.Reason)
	case errors.Is(err, domain.ErrUnauthorized):
		a.fail(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		a.fail(w, http.StatusNotFound, "not found")
	default:
		a.fail(w, http.StatusInternalServerError, err.Error())
	}
}
