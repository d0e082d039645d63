package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scribblestars/scribble-engine/internal/config"
	"github.com/scribblestars/scribble-engine/internal/content"
	"github.com/scribblestars/scribble-engine/internal/game"
	"github.com/scribblestars/scribble-engine/internal/realtime"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	router  *chi.Mux
	game    *game.Service
	library *content.Library
	hub     *realtime.Hub
	store   storage.Store

	wsWriteTimeout time.Duration
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	svc *game.Service,
	library *content.Library,
	hub *realtime.Hub,
	store storage.Store,
	wsWriteTimeout time.Duration,
) *Server {
	s := &Server{
		config:         cfg,
		game:           svc,
		library:        library,
		hub:            hub,
		store:          store,
		wsWriteTimeout: wsWriteTimeout,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// The request timeout does not apply to the websocket endpoints, so
		// it lives on the REST subtree only
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/students", func(r chi.Router) {
			r.Post("/", s.handleSignup)
			r.Get("/{id}/progress", s.handleGetProgress)
		})

		r.Route("/levels", func(r chi.Router) {
			r.Get("/", s.handleListLevels)
			r.Get("/{levelID}/tasks", s.handleGetLevelTasks)
		})

		r.Route("/game", func(r chi.Router) {
			r.Post("/submit", s.handleSubmitTask)
			r.Post("/predict", s.handlePredict)
		})

		r.Get("/leaderboard/top5", s.handleLeaderboard)
	})

	// Realtime streams
	r.Get("/ws/score_updates", s.handleScoreUpdatesWS)
	r.Get("/ws/leaderboard", s.handleLeaderboardWS)

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
