package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobarin/reze/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo image-to-video
// Submission and polling are separate calls: the caller owns the polling
// cadence, so nothing here blocks beyond a single request.
// ---------------------------------------------------------------------------

const defaultVeoModel = "veo-3.1-fast-generate-preview"

// GenerateVideoFromImage starts a Veo operation with image as the first frame.
func (s *GeminiService) GenerateVideoFromImage(ctx context.Context, prompt string, image models.ImagePayload, aspectRatio models.AspectRatio) (*VideoOperation, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, classify("generate_video", err)
	}

	firstFrame := &genai.Image{
		ImageBytes: image.Data,
		MIMEType:   image.MIMEType,
	}
	config := &genai.GenerateVideosConfig{
		AspectRatio:    string(aspectRatio),
		NumberOfVideos: 1,
	}

	s.log.Info("starting video generation",
		zap.String("model", s.videoModel),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("image_bytes", len(image.Data)),
		zap.String("aspect_ratio", string(aspectRatio)),
	)

	operation, err := client.Models.GenerateVideos(ctx, s.videoModel, prompt, firstFrame, config)
	if err != nil {
		return nil, classify("generate_video", err)
	}

	s.log.Info("video operation started", zap.String("operation", operation.Name))

	return wrapVideoOperation(operation)
}

// PollVideoOperation refreshes op once.
func (s *GeminiService) PollVideoOperation(ctx context.Context, op *VideoOperation) (*VideoOperation, error) {
	if op == nil {
		return nil, classify("poll_video", fmt.Errorf("operation handle is nil"))
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, classify("poll_video", err)
	}

	handle := op.handle
	if handle == nil {
		handle = &genai.GenerateVideosOperation{Name: op.Name}
	}

	updated, err := client.Operations.GetVideosOperation(ctx, handle, nil)
	if err != nil {
		return nil, classify("poll_video", err)
	}

	s.log.Debug("video operation polled", zap.String("operation", updated.Name), zap.Bool("done", updated.Done))

	return wrapVideoOperation(updated)
}

// DownloadVideo fetches the generated MP4 so the provider key never has to
// leave the server.
func (s *GeminiService) DownloadVideo(ctx context.Context, uri string) ([]byte, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, classify("download_video", err)
	}

	data, err := client.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: uri}), nil)
	if err != nil {
		return nil, classify("download_video", fmt.Errorf("failed to download generated video: %w", err))
	}
	if len(data) == 0 {
		return nil, classify("download_video", fmt.Errorf("downloaded video is empty (0 bytes)"))
	}
	return data, nil
}

// wrapVideoOperation converts the SDK operation into the opaque handle.
// A done operation carrying an error or filtered output is a failure; a done
// operation with no video is returned as done without a result.
func wrapVideoOperation(operation *genai.GenerateVideosOperation) (*VideoOperation, error) {
	if operation == nil {
		return nil, classify("poll_video", fmt.Errorf("provider returned no operation"))
	}

	op := &VideoOperation{
		Name:   operation.Name,
		Done:   operation.Done,
		handle: operation,
	}
	if !operation.Done {
		return op, nil
	}

	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, classify("poll_video", fmt.Errorf("video generation operation failed: %s", string(errJSON)))
	}

	resp := operation.Response
	if resp == nil {
		return op, nil
	}

	if resp.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(resp.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(resp.RAIMediaFilteredReasons, ", ")
		}
		return nil, classify("poll_video", fmt.Errorf("video blocked by safety filters: %s", reasons))
	}

	if len(resp.GeneratedVideos) > 0 && resp.GeneratedVideos[0] != nil && resp.GeneratedVideos[0].Video != nil {
		op.VideoURI = resp.GeneratedVideos[0].Video.URI
	}
	return op, nil
}
