// Package api exposes the management REST surface: monitor configuration,
// observed listings, price history, and the notification subscription.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"auction-watch/internal/fetcher"
	"auction-watch/internal/storage"
)

// ManualRunner triggers one out-of-band cycle for a monitor.
type ManualRunner interface {
	RunNow(ctx context.Context, id int64) error
}

// Server bundles the API dependencies.
type Server struct {
	monitors storage.MonitorStore
	listings storage.ListingStore
	history  storage.HistoryStore
	subs     storage.SubscriptionStore
	runner   ManualRunner
	fetcher  fetcher.ListingFetcher
	logger   zerolog.Logger
}

// NewServer constructs the API server.
func NewServer(
	monitors storage.MonitorStore,
	listings storage.ListingStore,
	history storage.HistoryStore,
	subs storage.SubscriptionStore,
	runner ManualRunner,
	f fetcher.ListingFetcher,
	logger zerolog.Logger,
) *Server {
	return &Server{
		monitors: monitors,
		listings: listings,
		history:  history,
		subs:     subs,
		runner:   runner,
		fetcher:  f,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", s.handleListMonitors)
			r.Post("/", s.handleCreateMonitor)
			r.Post("/test", s.handleTestMonitor)
			r.Get("/{id}", s.handleGetMonitor)
			r.Put("/{id}", s.handleUpdateMonitor)
			r.Delete("/{id}", s.handleDeleteMonitor)
			r.Post("/{id}/run", s.handleRunMonitor)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handleListItems)
			r.Get("/search", s.handleSearchItems)
			r.Get("/{id}", s.handleGetItem)
			r.Patch("/{id}/archive", s.handleArchiveItem)
		})

		r.Get("/history/{itemId}", s.handleListHistory)

		r.Route("/telegram", func(r chi.Router) {
			r.Get("/", s.handleGetSubscription)
			r.Post("/", s.handleSetSubscription)
		})

		r.Get("/health", s.handleHealth)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, map[string]string{"error": message})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}
