package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bobarin/reze/internal/animate"
	"github.com/bobarin/reze/internal/models"
	"github.com/bobarin/reze/internal/services"
	"go.uber.org/zap"
)

// SubmitVideo handles POST /v1/sessions/{id}/videos (multipart: image, prompt, aspect_ratio)
func (h *Handler) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	image, prompt, ok := readImageForm(w, r)
	if !ok {
		return
	}
	aspect, err := models.ParseAspectRatio(r.FormValue("aspect_ratio"), models.VideoAspectRatios, models.AspectLandscape)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.Job.Submit(r.Context(), animate.Request{Prompt: prompt, Image: image, AspectRatio: aspect})
	var verr *animate.ValidationError
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, s.Job.Snapshot())
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, animate.ErrBusy):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, animate.ErrCredentialRequired):
		respondError(w, http.StatusUnauthorized, "credential_required")
	case errors.Is(err, animate.ErrClosed):
		respondError(w, http.StatusNotFound, "Session not found")
	default:
		h.log.Error("video submission failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to submit video")
	}
}

// GetVideo handles GET /v1/sessions/{id}/videos
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if s, ok := h.sessions.Get(id); ok {
		respondJSON(w, http.StatusOK, s.Job.Snapshot())
		return
	}

	if h.snapshots != nil {
		snap, err := h.snapshots.LastSnapshot(r.Context(), id)
		if err != nil {
			h.log.Warn("failed to read cached snapshot", zap.String("session_id", id.String()), zap.Error(err))
		}
		if snap != nil {
			respondJSON(w, http.StatusOK, snap)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Session not found")
}

// GetVideoContent handles GET /v1/sessions/{id}/videos/content. The provider
// URI needs the key, so the bytes are proxied instead of exposing it.
func (h *Handler) GetVideoContent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	snap := s.Job.Snapshot()
	if snap.State != animate.StateDone || snap.VideoURL == "" {
		respondError(w, http.StatusConflict, "Video is not ready")
		return
	}

	data, err := h.downloader.DownloadVideo(r.Context(), snap.VideoURL)
	if err != nil {
		status := http.StatusBadGateway
		if services.IsCredentialError(err) {
			h.gate.Reset()
			status = http.StatusUnauthorized
		}
		h.log.Warn("video download failed", zap.String("session_id", s.ID.String()), zap.Error(err))
		respondError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `inline; filename="reze-video.mp4"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
