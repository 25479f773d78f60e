package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobarin/reze/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultImageModel = "imagen-4.0-generate-001"
	defaultEditModel  = "gemini-2.5-flash-image-preview"
	defaultChatModel  = "gemini-2.5-flash"
)

const assistantInstruction = `You are Reze, a friendly creative assistant inside an AI image and video studio.
Help the user come up with vivid prompts for image generation, image edits and short animations.
You can also explain how to use the studio: Generate creates images from a prompt with optional style, mood and lighting;
Edit applies a written instruction to an uploaded image; Animate turns an uploaded image into a short 16:9 or 9:16 video.
Keep answers short and concrete. Offer two or three prompt ideas when the user asks for inspiration.`

// GeminiOptions selects models for each flow. Empty fields use defaults.
type GeminiOptions struct {
	ImageModel string
	EditModel  string
	ChatModel  string
	VideoModel string
	Logger     *zap.Logger
}

// GeminiService talks to the Gemini API through the Google Gen AI SDK.
// A client is built per call from the current key, so a key selected at
// runtime takes effect on the next request.
type GeminiService struct {
	keys       KeySource
	imageModel string
	editModel  string
	chatModel  string
	videoModel string
	log        *zap.Logger
}

func NewGeminiService(keys KeySource, opts GeminiOptions) *GeminiService {
	s := &GeminiService{
		keys:       keys,
		imageModel: opts.ImageModel,
		editModel:  opts.EditModel,
		chatModel:  opts.ChatModel,
		videoModel: opts.VideoModel,
		log:        opts.Logger,
	}
	if s.imageModel == "" {
		s.imageModel = defaultImageModel
	}
	if s.editModel == "" {
		s.editModel = defaultEditModel
	}
	if s.chatModel == "" {
		s.chatModel = defaultChatModel
	}
	if s.videoModel == "" {
		s.videoModel = defaultVeoModel
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *GeminiService) client(ctx context.Context) (*genai.Client, error) {
	key := s.keys.APIKey()
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// GenerateImage renders one image with Imagen and returns it as a data URL.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt string, aspectRatio models.AspectRatio) (string, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", classify("generate_image", err)
	}

	s.log.Debug("generating image",
		zap.String("model", s.imageModel),
		zap.Int("prompt_len", len(prompt)),
		zap.String("aspect_ratio", string(aspectRatio)),
	)

	resp, err := client.Models.GenerateImages(ctx, s.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    string(aspectRatio),
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return "", classify("generate_image", err)
	}

	url, err := imageFromGenerateImages(resp)
	if err != nil {
		return "", classify("generate_image", err)
	}
	return url, nil
}

func imageFromGenerateImages(resp *genai.GenerateImagesResponse) (string, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return "", fmt.Errorf("no images were generated")
	}
	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			return "", fmt.Errorf("image blocked by safety filters: %s", generated.RAIFilteredReason)
		}
		return "", fmt.Errorf("generated image is empty")
	}
	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return models.DataURL(mimeType, generated.Image.ImageBytes), nil
}

// EditImage sends the source image and the instruction to the Gemini image
// model and returns the first image part of the reply.
func (s *GeminiService) EditImage(ctx context.Context, prompt string, image models.ImagePayload) (string, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", classify("edit_image", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(image.Data, image.MIMEType),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	s.log.Debug("editing image",
		zap.String("model", s.editModel),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("image_bytes", len(image.Data)),
	)

	resp, err := client.Models.GenerateContent(ctx, s.editModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return "", classify("edit_image", err)
	}

	url, err := imageFromContent(resp)
	if err != nil {
		return "", classify("edit_image", err)
	}
	return url, nil
}

func imageFromContent(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return models.DataURL(mimeType, part.InlineData.Data), nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		text := textParts[0]
		return "", fmt.Errorf("model returned text instead of an image: %s", text[:min(200, len(text))])
	}
	return "", fmt.Errorf("no image data found in response")
}

// GetBotResponse answers one chat message with the Reze persona.
func (s *GeminiService) GetBotResponse(ctx context.Context, message string) (string, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", classify("chat", err)
	}

	resp, err := client.Models.GenerateContent(ctx, s.chatModel, genai.Text(message), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(assistantInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", classify("chat", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", classify("chat", fmt.Errorf("assistant returned an empty reply"))
	}
	return reply, nil
}
