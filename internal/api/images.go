package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobarin/reze/internal/models"
	"github.com/bobarin/reze/internal/services"
	"go.uber.org/zap"
)

const maxUploadBytes = 20 << 20

const (
	msgPromptRequired   = "Prompt cannot be empty."
	msgEditInputMissing = "An image and a prompt are required to begin editing."
	msgInvalidImage     = "Please upload a valid image file."
)

var errNotImage = errors.New("uploaded file is not an image")

// GenerateImage handles POST /v1/images/generate
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, msgPromptRequired)
		return
	}
	aspect, err := models.ParseAspectRatio(req.AspectRatio, models.ImageAspectRatios, models.AspectLandscape)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	prompt := composePrompt(req)
	started := time.Now()
	url, err := h.images.GenerateImage(r.Context(), prompt, aspect)
	h.recordGeneration(r.Context(), models.ModeGenerate, nil, len(prompt), started, err)
	if err != nil {
		h.providerError(w, "API Error: ", err)
		return
	}

	respondJSON(w, http.StatusOK, models.ImageResponse{ImageURL: url})
}

// EditImage handles POST /v1/images/edit (multipart: image, prompt)
func (h *Handler) EditImage(w http.ResponseWriter, r *http.Request) {
	image, prompt, ok := readImageForm(w, r)
	if !ok {
		return
	}
	if image.Empty() || strings.TrimSpace(prompt) == "" {
		respondError(w, http.StatusBadRequest, msgEditInputMissing)
		return
	}

	started := time.Now()
	url, err := h.editor.EditImage(r.Context(), prompt, image)
	h.recordGeneration(r.Context(), models.ModeEdit, nil, len(prompt), started, err)
	if err != nil {
		h.providerError(w, "API ERROR: ", err)
		return
	}

	respondJSON(w, http.StatusOK, models.ImageResponse{ImageURL: url})
}

// composePrompt appends the selected modifiers to the prompt.
func composePrompt(req models.GenerateImageRequest) string {
	parts := []string{strings.TrimSpace(req.Prompt)}
	for _, m := range []*string{req.Style, req.Mood, req.Lighting} {
		if m != nil && strings.TrimSpace(*m) != "" {
			parts = append(parts, strings.TrimSpace(*m))
		}
	}
	return strings.Join(parts, ", ")
}

// providerError writes a failed provider call. Credential failures reset the
// gate and answer 401 so the client prompts for a key.
func (h *Handler) providerError(w http.ResponseWriter, prefix string, err error) {
	status := http.StatusBadGateway
	if services.IsCredentialError(err) {
		h.gate.Reset()
		status = http.StatusUnauthorized
	}
	h.log.Warn("provider call failed", zap.String("kind", services.KindOf(err).String()), zap.Error(err))
	respondError(w, status, prefix+err.Error())
}

// readImageForm parses a multipart upload with an optional "image" file and a
// "prompt" field. A missing file yields an empty payload.
func readImageForm(w http.ResponseWriter, r *http.Request) (models.ImagePayload, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MiB", maxUploadBytes>>20))
			return models.ImagePayload{}, "", false
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return models.ImagePayload{}, "", false
	}

	image, err := readImage(r)
	if err != nil {
		if errors.Is(err, errNotImage) {
			respondError(w, http.StatusBadRequest, msgInvalidImage)
		} else {
			respondError(w, http.StatusBadRequest, "Failed to read uploaded image")
		}
		return models.ImagePayload{}, "", false
	}
	return image, r.FormValue("prompt"), true
}

func readImage(r *http.Request) (models.ImagePayload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return models.ImagePayload{}, nil
	}
	if err != nil {
		return models.ImagePayload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.ImagePayload{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return models.ImagePayload{}, nil
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !models.IsImageMIME(mimeType) {
		return models.ImagePayload{}, errNotImage
	}
	return models.ImagePayload{Data: data, MIMEType: mimeType}, nil
}
