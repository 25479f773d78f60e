package services

import (
	"context"
	"strings"
	"testing"

	"github.com/bobarin/reze/internal/models"
	"google.golang.org/genai"
)

type staticKey string

func (k staticKey) APIKey() string { return string(k) }

func TestMissingKeyShortCircuits(t *testing.T) {
	s := NewGeminiService(staticKey(""), GeminiOptions{})
	ctx := context.Background()

	if _, err := s.GenerateImage(ctx, "a lion", models.AspectLandscape); KindOf(err) != KindCredentialMissing {
		t.Errorf("GenerateImage kind = %v, want credential_missing", KindOf(err))
	}
	if _, err := s.EditImage(ctx, "retro", models.ImagePayload{Data: []byte{1}, MIMEType: "image/png"}); KindOf(err) != KindCredentialMissing {
		t.Errorf("EditImage kind = %v, want credential_missing", KindOf(err))
	}
	if _, err := s.GenerateVideoFromImage(ctx, "leaves rustle", models.ImagePayload{Data: []byte{1}, MIMEType: "image/png"}, models.AspectLandscape); KindOf(err) != KindCredentialMissing {
		t.Errorf("GenerateVideoFromImage kind = %v, want credential_missing", KindOf(err))
	}
	if _, err := s.PollVideoOperation(ctx, &VideoOperation{Name: "operations/1"}); KindOf(err) != KindCredentialMissing {
		t.Errorf("PollVideoOperation kind = %v, want credential_missing", KindOf(err))
	}
	if _, err := s.GetBotResponse(ctx, "hello"); KindOf(err) != KindCredentialMissing {
		t.Errorf("GetBotResponse kind = %v, want credential_missing", KindOf(err))
	}
}

func TestNewGeminiServiceDefaults(t *testing.T) {
	s := NewGeminiService(staticKey("k"), GeminiOptions{VideoModel: "veo-custom"})
	if s.imageModel != defaultImageModel || s.editModel != defaultEditModel || s.chatModel != defaultChatModel {
		t.Errorf("unexpected default models: %s %s %s", s.imageModel, s.editModel, s.chatModel)
	}
	if s.videoModel != "veo-custom" {
		t.Errorf("videoModel = %q, want override", s.videoModel)
	}
}

func TestImageFromGenerateImages(t *testing.T) {
	resp := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{
			{Image: &genai.Image{ImageBytes: []byte("hi"), MIMEType: "image/png"}},
		},
	}
	got, err := imageFromGenerateImages(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "data:image/png;base64,aGk=" {
		t.Errorf("data URL = %q", got)
	}

	filtered := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{RAIFilteredReason: "celebrity"}},
	}
	if _, err := imageFromGenerateImages(filtered); err == nil || !strings.Contains(err.Error(), "celebrity") {
		t.Errorf("expected filter reason in error, got %v", err)
	}

	if _, err := imageFromGenerateImages(&genai.GenerateImagesResponse{}); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestImageFromContent(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is your edit"},
				{InlineData: &genai.Blob{Data: []byte("hi"), MIMEType: "image/png"}},
			}},
		}},
	}
	got, err := imageFromContent(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "data:image/png;base64,aGk=" {
		t.Errorf("data URL = %q", got)
	}

	textOnly := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "I cannot edit this image"}}},
		}},
	}
	if _, err := imageFromContent(textOnly); err == nil || !strings.Contains(err.Error(), "cannot edit") {
		t.Errorf("expected text fallback in error, got %v", err)
	}
}

func TestWrapVideoOperation(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		op, err := wrapVideoOperation(&genai.GenerateVideosOperation{Name: "operations/1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if op.Done {
			t.Error("operation should not be done")
		}
		if _, ok := op.Result(); ok {
			t.Error("pending operation should have no result")
		}
	})

	t.Run("done with video", func(t *testing.T) {
		op, err := wrapVideoOperation(&genai.GenerateVideosOperation{
			Name: "operations/1",
			Done: true,
			Response: &genai.GenerateVideosResponse{
				GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: "https://example/video123"}}},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		uri, ok := op.Result()
		if !ok || uri != "https://example/video123" {
			t.Errorf("Result() = (%q, %v)", uri, ok)
		}
	})

	t.Run("done without video", func(t *testing.T) {
		op, err := wrapVideoOperation(&genai.GenerateVideosOperation{Name: "operations/1", Done: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := op.Result(); ok {
			t.Error("expected no result")
		}
	})

	t.Run("operation error", func(t *testing.T) {
		_, err := wrapVideoOperation(&genai.GenerateVideosOperation{
			Done:  true,
			Error: map[string]any{"code": 3, "message": "bad input"},
		})
		if err == nil || KindOf(err) != KindGeneric {
			t.Errorf("expected generic error, got %v", err)
		}
	})

	t.Run("safety filtered", func(t *testing.T) {
		_, err := wrapVideoOperation(&genai.GenerateVideosOperation{
			Done: true,
			Response: &genai.GenerateVideosResponse{
				RAIMediaFilteredCount:   1,
				RAIMediaFilteredReasons: []string{"violence"},
			},
		})
		if err == nil || !strings.Contains(err.Error(), "violence") {
			t.Errorf("expected filter reason, got %v", err)
		}
	})
}
