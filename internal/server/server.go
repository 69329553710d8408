// Package server provides the HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bryan-buckman/feedbox/internal/database"
	fberrs "github.com/bryan-buckman/feedbox/internal/errors"
	"github.com/bryan-buckman/feedbox/internal/feeds"
	"github.com/bryan-buckman/feedbox/internal/opml"
	"github.com/bryan-buckman/feedbox/internal/rss"
)

// RefreshTimeout bounds a refresh triggered over HTTP.
const RefreshTimeout = 5 * time.Minute

// Server is the main HTTP server.
type Server struct {
	db        *database.DB
	refresher *rss.Refresher
	feeds     *feeds.Service
	importer   *opml.Importer
	validators ValidatorCache
	log        *slog.Logger
	router     chi.Router
}

// ValidatorCache drops the conditional-request state kept for a feed URL.
type ValidatorCache interface {
	Forget(url string)
}

// Config holds the services the server routes to.
type Config struct {
	DB         *database.DB
	Refresher  *rss.Refresher
	Feeds      *feeds.Service
	Importer   *opml.Importer
	Validators ValidatorCache // optional
	Logger     *slog.Logger
}

// New creates a new server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		db:         cfg.DB,
		refresher:  cfg.Refresher,
		feeds:      cfg.Feeds,
		importer:   cfg.Importer,
		validators: cfg.Validators,
		log:        cfg.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlerFuncE(s.handleHealth))

		r.Method(http.MethodGet, "/folders", handlerFuncE(s.handleListFolders))

		r.Method(http.MethodGet, "/feeds", handlerFuncE(s.handleListFeeds))
		r.Method(http.MethodPost, "/feeds", handlerFuncE(s.handleCreateFeed))
		r.Method(http.MethodGet, "/feeds/refresh", handlerFuncE(s.handleRefreshAll))
		r.Method(http.MethodPost, "/feeds/refresh", handlerFuncE(s.handleRefreshAll))
		r.Method(http.MethodPost, "/feeds/{feedID}/refresh", handlerFuncE(s.handleRefreshOne))
		r.Method(http.MethodDelete, "/feeds/{feedID}", handlerFuncE(s.handleDeleteFeed))

		r.Method(http.MethodGet, "/articles", handlerFuncE(s.handleListArticles))

		r.Method(http.MethodPost, "/opml", handlerFuncE(s.handleImportOPML))
		r.Method(http.MethodGet, "/opml", handlerFuncE(s.handleExportOPML))
	})

	s.router = r
}

func (s *Server) forget(feedURL string) {
	if s.validators != nil {
		s.validators.Forget(feedURL)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.InfoContext(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// handlerFuncE is an [http.HandlerFunc] that returns an error.
type handlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f handlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	// Either it's already a structured error, or coerce it to one
	sErr := &fberrs.Error{}
	if !errors.As(err, &sErr) {
		slog.ErrorContext(r.Context(), "unhandled error", "error", err)
		sErr = fberrs.E(http.StatusInternalServerError, "internal server error")
	}

	if err := writeJSON(w, sErr.Status, sErr); err != nil {
		slog.ErrorContext(r.Context(), "error writing response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}
	return nil
}
