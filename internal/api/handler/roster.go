package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/TechEqualizer/Sportlink-sub001/internal/api/respond"
	"github.com/TechEqualizer/Sportlink-sub001/internal/cache"
)

// GetRoster returns the player directory for a segment. Roster data changes
// on edits, not per request, so responses are served through the TTL cache
// with ETag revalidation.
// @Summary Get roster segment
// @Tags roster
// @Produce json
// @Param segment query string false "Roster segment" Enums(all, starters, bench) default(all)
// @Success 200 {array} roster.Player
// @Failure 400 {object} respond.ErrorResponse
// @Router /roster [get]
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	segment := r.URL.Query().Get("segment")
	if segment == "" {
		segment = "all"
	}
	if segment == "specific" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_SEGMENT", "specific is only valid inside an alert rule")
		return
	}

	cacheKey := fmt.Sprintf("roster:%s", segment)
	ttl := cache.TTLRoster

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	players, err := h.roster.Resolve(r.Context(), segment, nil)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_SEGMENT", err.Error())
		return
	}

	data, err := json.Marshal(players)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "encode roster")
		return
	}

	etag := h.cache.Set(cacheKey, data, ttl)
	respond.WriteJSON(w, data, etag, ttl, false)
}
