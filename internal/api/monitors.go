package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"auction-watch/internal/keyword"
	"auction-watch/internal/scheduler"
	"auction-watch/internal/storage"
)

const previewLimit = 20

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.monitors.ListMonitors(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list monitors failed")
		s.respondError(w, http.StatusInternalServerError, "failed to list monitors")
		return
	}
	s.respond(w, http.StatusOK, monitors)
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeMonitor(w, r)
	if !ok {
		return
	}

	id, err := s.monitors.CreateMonitor(r.Context(), cfg)
	if err != nil {
		s.logger.Error().Err(err).Msg("create monitor failed")
		s.respondError(w, http.StatusInternalServerError, "failed to create monitor")
		return
	}
	s.respond(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	cfg, err := s.monitors.GetMonitor(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("monitor_id", id).Msg("get monitor failed")
		s.respondError(w, http.StatusInternalServerError, "failed to load monitor")
		return
	}
	if cfg == nil {
		s.respondError(w, http.StatusNotFound, "monitor not found")
		return
	}
	s.respond(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	cfg, ok := s.decodeMonitor(w, r)
	if !ok {
		return
	}

	updated, err := s.monitors.UpdateMonitor(r.Context(), id, cfg)
	if err != nil {
		s.logger.Error().Err(err).Int64("monitor_id", id).Msg("update monitor failed")
		s.respondError(w, http.StatusInternalServerError, "failed to update monitor")
		return
	}
	if !updated {
		s.respondError(w, http.StatusNotFound, "monitor not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := s.monitors.DeleteMonitor(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("monitor_id", id).Msg("delete monitor failed")
		s.respondError(w, http.StatusInternalServerError, "failed to delete monitor")
		return
	}
	if !deleted {
		s.respondError(w, http.StatusNotFound, "monitor not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRunMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.runner.RunNow(r.Context(), id); err != nil {
		if errors.Is(err, scheduler.ErrMonitorNotFound) {
			s.respondError(w, http.StatusNotFound, "monitor not found")
			return
		}
		s.logger.Error().Err(err).Int64("monitor_id", id).Msg("manual run failed")
		s.respondError(w, http.StatusInternalServerError, "failed to run monitor")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"success": true, "message": "monitor executed"})
}

// handleTestMonitor dry-runs an unsaved monitor configuration: it fetches
// the source URL and applies the keyword filter, returning a bounded result
// preview without persisting anything.
func (s *Server) handleTestMonitor(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeMonitor(w, r)
	if !ok {
		return
	}

	offers, err := s.fetcher.FetchListings(r.Context(), cfg.URL)
	if err != nil {
		s.logger.Error().Err(err).Str("url", cfg.URL).Msg("preview fetch failed")
		s.respond(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
			"message": "failed to fetch offers; check the URL and try again",
		})
		return
	}

	mode := keyword.ParseMode(cfg.KeywordMode)

	type previewItem struct {
		OfferID string  `json:"offerId"`
		Title   string  `json:"title"`
		Price   string  `json:"price"`
		Lot     *int    `json:"lotNumber,omitempty"`
		EndDate *string `json:"endDate,omitempty"`
	}

	filtered := 0
	preview := make([]previewItem, 0, previewLimit)
	for _, offer := range offers {
		searchText := keyword.SearchText(offer.Title, offer.Description, offer.OfferDescription)
		if !keyword.Matches(searchText, cfg.Keywords, mode) {
			continue
		}
		filtered++
		if len(preview) < previewLimit {
			preview = append(preview, previewItem{
				OfferID: offer.OfferID,
				Title:   offer.Title,
				Price:   offer.Price.StringFixed(2),
				Lot:     offer.LotNumber,
				EndDate: offer.EndDate,
			})
		}
	}

	s.respond(w, http.StatusOK, map[string]any{
		"success":        true,
		"totalFound":     len(offers),
		"filteredCount":  filtered,
		"previewResults": preview,
	})
}

func (s *Server) decodeMonitor(w http.ResponseWriter, r *http.Request) (storage.Monitor, bool) {
	var cfg storage.Monitor
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return storage.Monitor{}, false
	}
	if cfg.Name == "" || cfg.URL == "" {
		s.respondError(w, http.StatusBadRequest, "name and url are required")
		return storage.Monitor{}, false
	}
	if cfg.IntervalMinutes < 1 {
		s.respondError(w, http.StatusBadRequest, "intervalMinutes must be at least 1")
		return storage.Monitor{}, false
	}
	cfg.KeywordMode = string(keyword.ParseMode(cfg.KeywordMode))
	if cfg.Keywords == nil {
		cfg.Keywords = []string{}
	}
	return cfg, true
}
