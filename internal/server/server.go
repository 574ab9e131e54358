// Package server provides the HTTP server and routing for the ticker
// return engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/avramidis/tickernav/internal/config"
	"github.com/avramidis/tickernav/internal/database"
	"github.com/avramidis/tickernav/internal/events"
	"github.com/avramidis/tickernav/internal/modules/nav"
	"github.com/avramidis/tickernav/internal/modules/refresh"
	"github.com/avramidis/tickernav/internal/modules/returns"
	"github.com/avramidis/tickernav/internal/modules/watchlist"
	"github.com/avramidis/tickernav/internal/reliability"
	"github.com/avramidis/tickernav/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log          zerolog.Logger
	Config       *config.Config
	WatchlistsDB *database.DB
	CacheDB      *database.DB

	Watchlists *watchlist.Service
	Refresh    *refresh.Service
	Returns    *returns.Calculator
	Sampler    *nav.Sampler
	NAVCache   *nav.SeriesCache
	Realtime   *scheduler.RealtimeNAV
	Cron       *scheduler.Cron
	Bus        *events.Bus
	Backups    *reliability.BackupService // nil when backups are disabled
	Provider   RequestBudget              // may be nil
}

// RequestBudget exposes the provider's remaining daily request count.
type RequestBudget interface {
	GetRemainingRequests() int
}

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config

	watchlistHandlers *WatchlistHandlers
	systemHandlers    *SystemHandlers
	eventsStream      *EventsStreamHandler
	navStream         *NAVStreamHandler
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.watchlistHandlers = NewWatchlistHandlers(cfg.Watchlists, cfg.Refresh, cfg.Returns, cfg.Sampler, cfg.NAVCache, cfg.Log)
	s.systemHandlers = NewSystemHandlers(cfg.Config.DataDir, cfg.WatchlistsDB, cfg.CacheDB, cfg.Realtime, cfg.Cron, cfg.Provider, cfg.Backups, cfg.Log)
	s.eventsStream = NewEventsStreamHandler(cfg.Bus, cfg.Log)
	s.navStream = NewNAVStreamHandler(cfg.Bus, cfg.Log)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE and websocket streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Streams are registered first; they manage their own timeouts.
		r.Get("/events/stream", s.eventsStream.ServeHTTP)
		r.Get("/nav/stream", s.navStream.ServeHTTP)

		s.watchlistHandlers.RegisterRoutes(r)
		s.systemHandlers.RegisterRoutes(r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
