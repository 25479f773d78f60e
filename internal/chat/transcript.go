package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bobarin/reze/internal/models"
	"github.com/bobarin/reze/internal/services"
	"go.uber.org/zap"
)

const Greeting = "Hi there! I'm Reze, your creative assistant. How can I help you today? You can ask me for prompt ideas or how to use the generator's features."

var (
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrPending      = errors.New("waiting for the assistant to reply")
)

// Transcript is the assistant conversation of one session. Only one message
// may be outstanding at a time.
type Transcript struct {
	assistant services.Assistant
	log       *zap.Logger

	mu       sync.Mutex
	messages []models.ChatMessage
	pending  bool
	errMsg   string
}

func NewTranscript(assistant services.Assistant, log *zap.Logger) *Transcript {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transcript{
		assistant: assistant,
		log:       log,
		messages:  []models.ChatMessage{{Role: models.RoleModel, Content: Greeting}},
	}
}

// Send appends text as a user message and waits for the assistant's reply.
// On failure the transcript keeps the user message and records
// "SYSTEM ERROR: <message>".
func (t *Transcript) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	t.mu.Lock()
	if t.pending {
		t.mu.Unlock()
		return "", ErrPending
	}
	t.pending = true
	t.errMsg = ""
	t.messages = append(t.messages, models.ChatMessage{Role: models.RoleUser, Content: text})
	t.mu.Unlock()

	reply, err := t.assistant.GetBotResponse(ctx, text)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
	if err != nil {
		t.errMsg = "SYSTEM ERROR: " + err.Error()
		t.log.Warn("assistant reply failed", zap.Error(err))
		return "", errors.New(t.errMsg)
	}
	t.messages = append(t.messages, models.ChatMessage{Role: models.RoleModel, Content: reply})
	return reply, nil
}

// Messages returns a copy of the conversation so far.
func (t *Transcript) Messages() []models.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.ChatMessage(nil), t.messages...)
}

// Err returns the last failure message, empty if the last send succeeded.
func (t *Transcript) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

func (t *Transcript) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Response renders the transcript for the API.
func (t *Transcript) Response() models.ChatResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	resp := models.ChatResponse{
		Messages: append([]models.ChatMessage(nil), t.messages...),
		Pending:  t.pending,
	}
	if t.errMsg != "" {
		msg := t.errMsg
		resp.Error = &msg
	}
	return resp
}
