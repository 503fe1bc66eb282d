package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TechEqualizer/Sportlink-sub001/internal/api/respond"
	"github.com/TechEqualizer/Sportlink-sub001/internal/messaging"
)

// CreateMessage sends a broadcast, direct, or alert message.
// @Summary Send a message
// @Description Creates a message with status=sent. Direct and alert messages require recipient_id; broadcast messages must omit it.
// @Tags messages
// @Accept json
// @Produce json
// @Param message body messaging.SendInput true "Message"
// @Success 201 {object} messaging.Message
// @Failure 400 {object} respond.ErrorResponse
// @Router /messages [post]
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var in messaging.SendInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "request body is not valid JSON")
		return
	}

	m, err := h.messages.Send(r.Context(), in)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, m)
}

// ListMessages returns the messages visible to a user, newest first.
// @Summary List messages for a user
// @Tags messages
// @Produce json
// @Param user query string true "User id"
// @Success 200 {array} messaging.Message
// @Failure 400 {object} respond.ErrorResponse
// @Router /messages [get]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_USER", "user query parameter is required")
		return
	}

	msgs, err := h.messages.ListForUser(r.Context(), user, parseNow(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	respond.WriteJSONObject(w, http.StatusOK, msgs)
}

type markReadRequest struct {
	UserID     string            `json:"user_id"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}

// MarkRead records a read receipt for a message.
// @Summary Mark a message read
// @Description Idempotent upsert: repeated reads overwrite read_at and device_info on the same receipt.
// @Tags messages
// @Accept json
// @Produce json
// @Param messageID path int true "Message id"
// @Param receipt body markReadRequest true "Reader"
// @Success 200 {object} messaging.MessageRead
// @Failure 404 {object} respond.ErrorResponse
// @Router /messages/{messageID}/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "message id must be an integer")
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "request body is not valid JSON")
		return
	}
	if req.UserID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_USER", "user_id is required")
		return
	}

	receipt, err := h.messages.MarkRead(r.Context(), messageID, req.UserID, req.DeviceInfo, parseNow(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, receipt)
}

// UnreadCount returns the unread badge count for a user.
// @Summary Unread message count
// @Tags messages
// @Produce json
// @Param user query string true "User id"
// @Success 200 {object} map[string]interface{}
// @Router /messages/unread/count [get]
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_USER", "user query parameter is required")
		return
	}

	n, err := h.messages.UnreadCountForUser(r.Context(), user, parseNow(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"user_id": user,
		"unread":  n,
	})
}

// UnreadByPlayer reports, per recipient, how many of the coach's direct
// messages remain unread by that player.
// @Summary Unread counts grouped by player
// @Tags messages
// @Produce json
// @Param coach query string true "Coach id"
// @Success 200 {object} map[string]interface{}
// @Router /messages/unread/by-player [get]
func (h *Handler) UnreadByPlayer(w http.ResponseWriter, r *http.Request) {
	coach := r.URL.Query().Get("coach")
	if coach == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_COACH", "coach query parameter is required")
		return
	}

	counts, err := h.messages.UnreadCountsByPlayer(r.Context(), coach, parseNow(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"coach_id": coach,
		"counts":   counts,
	})
}
