package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"pdfchat-backend/internal/handlers"
	"pdfchat-backend/internal/middleware"
)

type Handlers struct {
	Session  *handlers.SessionHandler
	Document *handlers.DocumentHandler
	Chat     *handlers.ChatHandler
	Config   *handlers.ConfigHandler
	// WebSocket authenticates with ?token= and is mounted outside the session middleware
	WebSocket http.HandlerFunc
}

func New(
	sessionAuth *middleware.SessionAuth,
	h Handlers,
	rateLimit func(http.Handler) http.Handler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", handlers.Page)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", h.Config.Get)
		r.Get("/documents/supported-formats", h.Document.SupportedFormats)
		if h.WebSocket != nil {
			r.Get("/ws", h.WebSocket)
		}

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth.Middleware)

			r.Get("/session", h.Session.Get)
			r.Delete("/session", h.Session.Clear)

			// Rate limited
			r.With(rateLimit).Post("/documents", h.Document.Upload)
			r.With(rateLimit).Post("/documents/examples/{index}", h.Document.LoadExample)
			r.Get("/documents/current", h.Document.Current)

			r.With(rateLimit).Post("/chat", h.Chat.Chat)
			r.Get("/chat/history", h.Chat.History)

			r.Route("/history", func(r chi.Router) {
				r.Get("/download", h.Chat.Download)
				r.Get("/archives/{id}", h.Chat.Archive)
			})
		})
	})

	return r
}
