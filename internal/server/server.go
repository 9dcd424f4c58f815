// Package server exposes the REST API for the agent and the admin surface.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/colonyops/todoq/internal/core/logging"
	"github.com/colonyops/todoq/internal/todoq"
)

// Server is the todoq HTTP API.
type Server struct {
	app    *todoq.App
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates the HTTP server for the given app.
func NewServer(app *todoq.App) *Server {
	return &Server{
		app: app,
		log: logging.Component("http"),
	}
}

// Handler builds the full route tree. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.app.Config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)

		r.Route("/agent", func(r chi.Router) {
			r.Get("/next", s.handleAgentNext)
			r.Post("/output", s.handleAgentOutput)
			r.Post("/status", s.handleAgentStatus)
			r.Post("/complete", s.handleAgentComplete)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", s.handleListTodos)
			r.Post("/", s.handleCreateTodo)
			r.Post("/bulk", s.handleBulkStatus)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTodo)
				r.Put("/", s.handleUpdateTodo)
				r.Delete("/", s.handleDeleteTodo)
				r.Get("/history", s.handleTodoHistory)
				r.Get("/comments", s.handleTodoComments)
				r.Post("/comments", s.handleAddComment)
				r.Get("/reports", s.handleTodoReports)
			})
		})

		r.Route("/cron", func(r chi.Router) {
			r.Get("/", s.handleListCron)
			r.Get("/reports", s.handleCronReports)
			r.Post("/{id}/activate", s.handleCronActivate)
			r.Post("/{id}/reset", s.handleCronReset)
		})

		r.Get("/stats", s.handleStats)
	})

	return r
}

// ListenAndServe starts the HTTP server. The provided context is the base
// context for all incoming requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.app.Config.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	s.log.Info().Str("addr", s.app.Config.Server.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// apiKeyMiddleware rejects requests without the configured key. An empty
// configured key disables auth (local development).
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.app.Config.Server.APIKey
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key != want {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
