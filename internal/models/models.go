package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectClassic   AspectRatio = "4:3"
	AspectTall      AspectRatio = "3:4"
)

// ImageAspectRatios are accepted by the image generator.
var ImageAspectRatios = []AspectRatio{AspectSquare, AspectLandscape, AspectPortrait, AspectClassic, AspectTall}

// VideoAspectRatios are accepted by the video generator.
var VideoAspectRatios = []AspectRatio{AspectLandscape, AspectPortrait}

// ParseAspectRatio validates s against allowed. Empty input yields def.
func ParseAspectRatio(s string, allowed []AspectRatio, def AspectRatio) (AspectRatio, error) {
	if s == "" {
		return def, nil
	}
	for _, a := range allowed {
		if string(a) == s {
			return a, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", fmt.Errorf("invalid aspect ratio %q (allowed: %s)", s, strings.Join(names, ", "))
}

type GenerationMode string

const (
	ModeGenerate  GenerationMode = "generate"
	ModeEdit      GenerationMode = "edit"
	ModeAnimate   GenerationMode = "animate"
	ModeAssistant GenerationMode = "assistant"
)

// Generation statuses
const (
	GenerationRunning   = "running"
	GenerationSucceeded = "succeeded"
	GenerationFailed    = "failed"
	GenerationCancelled = "cancelled"
)

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ImagePayload is an uploaded image: raw bytes plus MIME type.
type ImagePayload struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether no image was supplied.
func (p ImagePayload) Empty() bool {
	return len(p.Data) == 0
}

// IsImageMIME reports whether mimeType names an image type.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// DataURL renders bytes as a displayable data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Generation is one logged provider round trip. Only metadata is kept,
// never the generated artifact.
type Generation struct {
	ID           uuid.UUID      `json:"id"`
	SessionID    *uuid.UUID     `json:"session_id,omitempty"`
	Mode         GenerationMode `json:"mode"`
	Status       string         `json:"status"`
	PromptLength int            `json:"prompt_length"`
	PollCount    int            `json:"poll_count"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// DTOs for API requests and responses

type GenerateImageRequest struct {
	Prompt      string  `json:"prompt"`
	AspectRatio string  `json:"aspect_ratio,omitempty"` // Default: "16:9"
	Style       *string `json:"style,omitempty"`
	Mood        *string `json:"mood,omitempty"`
	Lighting    *string `json:"lighting,omitempty"`
}

type ImageResponse struct {
	ImageURL string `json:"image_url"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Messages []ChatMessage `json:"messages"`
	Pending  bool          `json:"pending"`
	Error    *string       `json:"error,omitempty"`
}

type SelectKeyRequest struct {
	APIKey string `json:"api_key"`
}

type CredentialResponse struct {
	HasSelectedAPIKey bool `json:"has_selected_api_key"`
}

type CreateSessionResponse struct {
	SessionID         uuid.UUID `json:"session_id"`
	HasSelectedAPIKey bool      `json:"has_selected_api_key"`
}

type ImageModifierPresets struct {
	Styles   []string `json:"styles"`
	Moods    []string `json:"moods"`
	Lighting []string `json:"lighting"`
}
