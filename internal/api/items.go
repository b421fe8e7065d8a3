package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"auction-watch/internal/storage"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	archived, _ := strconv.ParseBool(r.URL.Query().Get("archived"))

	items, err := s.listings.ListListings(r.Context(), archived)
	if err != nil {
		s.logger.Error().Err(err).Msg("list items failed")
		s.respondError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	s.respond(w, http.StatusOK, items)
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	items, err := s.listings.SearchListings(r.Context(), query)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("search items failed")
		s.respondError(w, http.StatusInternalServerError, "failed to search items")
		return
	}
	s.respond(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := s.listings.GetListing(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("listing_id", id).Msg("get item failed")
		s.respondError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	if item == nil {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	s.respond(w, http.StatusOK, item)
}

func (s *Server) handleArchiveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	body := struct {
		Archived *bool `json:"archived"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	archived := true
	if body.Archived != nil {
		archived = *body.Archived
	}

	updated, err := s.listings.ArchiveListing(r.Context(), id, archived)
	if err != nil {
		s.logger.Error().Err(err).Int64("listing_id", id).Msg("archive item failed")
		s.respondError(w, http.StatusInternalServerError, "failed to archive item")
		return
	}
	if !updated {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemId")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	entries, err := s.history.ListPriceChanges(r.Context(), itemID)
	if err != nil {
		s.logger.Error().Err(err).Int64("listing_id", itemID).Msg("list history failed")
		s.respondError(w, http.StatusInternalServerError, "failed to list price history")
		return
	}
	s.respond(w, http.StatusOK, entries)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.GetSubscription(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("get subscription failed")
		s.respondError(w, http.StatusInternalServerError, "failed to load telegram config")
		return
	}
	if sub == nil {
		s.respondError(w, http.StatusNotFound, "telegram config not found")
		return
	}
	s.respond(w, http.StatusOK, sub)
}

func (s *Server) handleSetSubscription(w http.ResponseWriter, r *http.Request) {
	var sub storage.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if sub.BotToken == "" || sub.ChatID == "" {
		s.respondError(w, http.StatusBadRequest, "botToken and chatId are required")
		return
	}

	if _, err := s.subs.UpsertSubscription(r.Context(), sub); err != nil {
		s.logger.Error().Err(err).Msg("upsert subscription failed")
		s.respondError(w, http.StatusInternalServerError, "failed to save telegram config")
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"success": true})
}
