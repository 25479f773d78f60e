package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func TestNewEvent(t *testing.T) {
	id := uuid.New()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := newEvent(animate.Snapshot{SessionID: id, State: animate.StateDone, VideoURL: "https://example/video123"}, now)

	if ev.Type != "video.done" {
		t.Errorf("Type = %q", ev.Type)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	snap, _ := decoded["snapshot"].(map[string]any)
	if snap["status"] != "done" || snap["video_url"] != "https://example/video123" || snap["session_id"] != id.String() {
		t.Errorf("unexpected snapshot payload: %v", snap)
	}
}

func TestNewEventForTeardown(t *testing.T) {
	ev := newEvent(animate.Snapshot{State: animate.StateError, Error: animate.MsgCancelled, Closed: true}, time.Now())
	if ev.Type != "video.cancelled" {
		t.Errorf("Type = %q, want video.cancelled", ev.Type)
	}
}

func TestJobKey(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001")
	if got := jobKey(id); got != "studio:job:6f1c2d3e-0000-4000-8000-000000000001" {
		t.Errorf("jobKey() = %q", got)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not a url", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPublishRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	p, err := New(url, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	id := uuid.New()
	if err := p.Publish(ctx, animate.Snapshot{SessionID: id, State: animate.StatePolling, PollCount: 3}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := p.LastSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if got == nil || got.State != animate.StatePolling || got.PollCount != 3 {
		t.Errorf("LastSnapshot() = %+v", got)
	}

	p.JobChanged(ctx, animate.Snapshot{SessionID: id, State: animate.StateError, Error: animate.MsgCancelled, Closed: true})
	got, err = p.LastSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if got == nil || got.State != animate.StateError || !got.Closed {
		t.Errorf("teardown should overwrite the cached snapshot, got %+v", got)
	}

	missing, err := p.LastSnapshot(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("unknown session = (%v, %v), want (nil, nil)", missing, err)
	}
}
