package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	appmiddleware "server/internal/middleware"
)

// RouterOptions carries everything the router needs beyond the handlers.
type RouterOptions struct {
	App            *handlers.App
	Logger         *infra.Logger
	JWTSecret      string
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  appmiddleware.CountryLookup
	// StaticDir, when set, serves re-hosted artifacts under /static/.
	StaticDir string
	// GenerateLimit caps generation requests per user per window.
	GenerateLimit  int
	GenerateWindow time.Duration
}

// NewRouter assembles the HTTP surface: open health endpoint, JWT-guarded API
// routes, and optional static serving for the local object store.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(appmiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	if opts.Logger != nil {
		r.Use(appmiddleware.Logger(*opts.Logger))
	}
	r.Use(appmiddleware.CORS(opts.AllowedOrigins))
	r.Use(appmiddleware.Locale(opts.DefaultLocale, opts.CountryLookup))

	r.Get("/v1/healthz", opts.App.Health)

	if opts.StaticDir != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(appmiddleware.AuthJWT(opts.JWTSecret))

		r.Route("/generate", func(r chi.Router) {
			limit, window := opts.GenerateLimit, opts.GenerateWindow
			if limit <= 0 {
				limit = 10
			}
			if window <= 0 {
				window = time.Minute
			}
			r.Use(appmiddleware.RateLimit(limit, window))
			r.Post("/video", opts.App.GenerateVideo)
			r.Post("/image", opts.App.GenerateImage)
		})
		r.Post("/chat", opts.App.Chat)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", opts.App.ListSessions)
			r.Get("/{id}/messages", opts.App.SessionMessages)
			r.Delete("/{id}", opts.App.DeleteSession)
		})
	})

	return r
}
