package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/bobarin/reze/internal/credential"
	"github.com/bobarin/reze/internal/models"
	"github.com/bobarin/reze/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type stubVideo struct{}

func (stubVideo) GenerateVideoFromImage(ctx context.Context, prompt string, image models.ImagePayload, aspect models.AspectRatio) (*services.VideoOperation, error) {
	return &services.VideoOperation{Name: "operations/1"}, nil
}

func (stubVideo) PollVideoOperation(ctx context.Context, op *services.VideoOperation) (*services.VideoOperation, error) {
	return op, nil
}

type stubAssistant struct{}

func (stubAssistant) GetBotResponse(ctx context.Context, msg string) (string, error) {
	return "ok", nil
}

func newRegistry(t *testing.T, key string) *Registry {
	t.Helper()
	return NewRegistry(Options{
		Video:     stubVideo{},
		Assistant: stubAssistant{},
		Gate:      credential.NewGate(key),
		Logger:    zaptest.NewLogger(t),
		IdleTTL:   time.Minute,
		// Long intervals so the system tickers never fire during a test.
		PollInterval:    time.Hour,
		MessageInterval: time.Hour,
	})
}

func TestCreateGetClose(t *testing.T) {
	r := newRegistry(t, "key")

	s, available := r.Create(context.Background())
	if !available {
		t.Error("gate should report a configured key")
	}
	if s.Job == nil || s.Chat == nil {
		t.Fatal("session should own a job and a transcript")
	}
	if got, ok := r.Get(s.ID); !ok || got != s {
		t.Fatal("Get should return the created session")
	}
	if _, ok := r.Get(uuid.New()); ok {
		t.Error("unknown id should not resolve")
	}

	if !r.Close(s.ID) {
		t.Fatal("Close should report the session existed")
	}
	if r.Close(s.ID) {
		t.Error("second Close should be a no-op")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestCreateWithoutKey(t *testing.T) {
	r := newRegistry(t, "")
	if _, available := r.Create(context.Background()); available {
		t.Error("gate should be unavailable without a key")
	}
}

func TestCloseTearsDownJob(t *testing.T) {
	r := newRegistry(t, "key")
	s, _ := r.Create(context.Background())

	img := models.ImagePayload{Data: []byte{1}, MIMEType: "image/png"}
	if err := s.Job.Submit(context.Background(), animate.Request{Prompt: "leaves rustle", Image: img}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p, m := s.Job.ActiveTimers(); p != 1 || m != 1 {
		t.Fatalf("ActiveTimers() = (%d, %d)", p, m)
	}

	r.Close(s.ID)
	if p, m := s.Job.ActiveTimers(); p != 0 || m != 0 {
		t.Errorf("timers survived teardown: (%d, %d)", p, m)
	}
	if err := s.Job.Submit(context.Background(), animate.Request{Image: img}); !errors.Is(err, animate.ErrClosed) {
		t.Errorf("Submit after Close = %v, want ErrClosed", err)
	}
}

func TestReapIdleSessions(t *testing.T) {
	r := newRegistry(t, "key")
	old, _ := r.Create(context.Background())
	fresh, _ := r.Create(context.Background())

	r.mu.Lock()
	old.lastSeen = time.Now().Add(-2 * time.Minute)
	r.mu.Unlock()

	if n := r.Reap(time.Now()); n != 1 {
		t.Fatalf("Reap() = %d, want 1", n)
	}
	if _, ok := r.Get(old.ID); ok {
		t.Error("idle session should be gone")
	}
	if _, ok := r.Get(fresh.ID); !ok {
		t.Error("fresh session should survive")
	}
}

func TestRunClosesAllOnShutdown(t *testing.T) {
	r := newRegistry(t, "key")
	r.Create(context.Background())
	r.Create(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after shutdown", r.Len())
	}
}
