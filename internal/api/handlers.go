package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/bobarin/reze/internal/credential"
	"github.com/bobarin/reze/internal/models"
	"github.com/bobarin/reze/internal/services"
	"github.com/bobarin/reze/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerationLog persists metadata about provider round trips.
type GenerationLog interface {
	RecordGeneration(ctx context.Context, g *models.Generation) error
	ListSessionGenerations(ctx context.Context, sessionID uuid.UUID) ([]models.Generation, error)
}

// SnapshotStore serves the last known video state of sessions that are no
// longer live in this process.
type SnapshotStore interface {
	LastSnapshot(ctx context.Context, sessionID uuid.UUID) (*animate.Snapshot, error)
}

type Deps struct {
	Gate       *credential.Gate
	Images     services.ImageGenerator
	Editor     services.ImageEditor
	Downloader services.VideoDownloader
	Sessions   *session.Registry
	History    GenerationLog // optional
	Snapshots  SnapshotStore // optional
	Logger     *zap.Logger
}

type Handler struct {
	gate       *credential.Gate
	images     services.ImageGenerator
	editor     services.ImageEditor
	downloader services.VideoDownloader
	sessions   *session.Registry
	history    GenerationLog
	snapshots  SnapshotStore
	log        *zap.Logger
}

func NewHandler(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		gate:       d.Gate,
		images:     d.Images,
		editor:     d.Editor,
		downloader: d.Downloader,
		sessions:   d.Sessions,
		history:    d.History,
		snapshots:  d.Snapshots,
		log:        log.Named("http"),
	}
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

// GetCredentials handles GET /v1/credentials
func (h *Handler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.CredentialResponse{
		HasSelectedAPIKey: h.gate.Available(),
	})
}

// SelectCredential handles POST /v1/credentials/select
func (h *Handler) SelectCredential(w http.ResponseWriter, r *http.Request) {
	var req models.SelectKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	respondJSON(w, http.StatusOK, models.CredentialResponse{
		HasSelectedAPIKey: h.gate.RequestSelection(req.APIKey),
	})
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, available := h.sessions.Create(r.Context())
	respondJSON(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID:         s.ID,
		HasSelectedAPIKey: available,
	})
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if !h.sessions.Close(id) {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGenerations handles GET /v1/sessions/{id}/generations
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		respondError(w, http.StatusNotFound, "Generation history is not enabled")
		return
	}

	gens, err := h.history.ListSessionGenerations(r.Context(), id)
	if err != nil {
		h.log.Error("failed to list generations", zap.String("session_id", id.String()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to list generations")
		return
	}
	if gens == nil {
		gens = []models.Generation{}
	}
	respondJSON(w, http.StatusOK, gens)
}

// ListImageModifierPresets handles GET /v1/presets/image-modifiers
func (h *Handler) ListImageModifierPresets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, imageModifierPresets)
}

var imageModifierPresets = models.ImageModifierPresets{
	Styles: []string{
		"Photorealistic", "Anime", "Cyberpunk", "Impressionism", "Steampunk", "Minimalist",
		"Fantasy Art", "Watercolor", "Abstract", "Cartoon", "Vintage",
	},
	Moods:    []string{"Dramatic", "Serene", "Cheerful", "Mysterious", "Energetic"},
	Lighting: []string{"Soft Light", "Cinematic", "Neon", "Golden Hour", "Low Light"},
}

// lookupSession resolves {id} to a live session, writing 400/404 otherwise.
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return nil, false
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

// recordGeneration logs a finished one-shot call. Failures to record never
// affect the response.
func (h *Handler) recordGeneration(ctx context.Context, mode models.GenerationMode, sessionID *uuid.UUID, promptLen int, started time.Time, callErr error) {
	if h.history == nil {
		return
	}
	finished := time.Now()
	g := &models.Generation{
		SessionID:    sessionID,
		Mode:         mode,
		Status:       models.GenerationSucceeded,
		PromptLength: promptLen,
		StartedAt:    started,
		FinishedAt:   &finished,
	}
	if callErr != nil {
		msg := callErr.Error()
		g.Status = models.GenerationFailed
		g.ErrorMessage = &msg
	}
	if err := h.history.RecordGeneration(ctx, g); err != nil {
		h.log.Warn("failed to record generation", zap.String("mode", string(mode)), zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
