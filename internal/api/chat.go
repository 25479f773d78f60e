package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bobarin/reze/internal/chat"
	"github.com/bobarin/reze/internal/models"
)

// GetChat handles GET /v1/sessions/{id}/chat
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Chat.Response())
}

// PostChat handles POST /v1/sessions/{id}/chat
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	started := time.Now()
	_, err := s.Chat.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "Message cannot be empty.")
		return
	case errors.Is(err, chat.ErrPending):
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	id := s.ID
	h.recordGeneration(r.Context(), models.ModeAssistant, &id, len(req.Message), started, err)

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, s.Chat.Response())
}
