package services

import (
	"context"

	"github.com/bobarin/reze/internal/models"
	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Provider contracts
// The HTTP layer and the video job only see these interfaces, so the Gemini
// adapter can be swapped for fakes in tests or for another provider.
// ---------------------------------------------------------------------------

// KeySource supplies the provider key at call time.
type KeySource interface {
	APIKey() string
}

type ImageGenerator interface {
	// GenerateImage returns a displayable data URL.
	GenerateImage(ctx context.Context, prompt string, aspectRatio models.AspectRatio) (string, error)
}

type ImageEditor interface {
	// EditImage returns the edited image as a data URL.
	EditImage(ctx context.Context, prompt string, image models.ImagePayload) (string, error)
}

type VideoGenerator interface {
	GenerateVideoFromImage(ctx context.Context, prompt string, image models.ImagePayload, aspectRatio models.AspectRatio) (*VideoOperation, error)
	PollVideoOperation(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
}

type VideoDownloader interface {
	DownloadVideo(ctx context.Context, uri string) ([]byte, error)
}

type Assistant interface {
	GetBotResponse(ctx context.Context, message string) (string, error)
}

// VideoOperation is the handle for an asynchronous video generation. Callers
// round-trip it to PollVideoOperation and read only Done and Result.
type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string

	handle *genai.GenerateVideosOperation
}

// Result returns the generated video location once the operation is done.
func (op *VideoOperation) Result() (string, bool) {
	if op == nil || !op.Done || op.VideoURI == "" {
		return "", false
	}
	return op.VideoURI, true
}
