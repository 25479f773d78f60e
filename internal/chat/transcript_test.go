package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobarin/reze/internal/models"
)

type fakeAssistant struct {
	reply string
	err   error
	calls int
	block chan struct{}
}

func (f *fakeAssistant) GetBotResponse(ctx context.Context, msg string) (string, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.reply, f.err
}

func TestNewTranscriptGreets(t *testing.T) {
	tr := NewTranscript(&fakeAssistant{}, nil)
	msgs := tr.Messages()
	if len(msgs) != 1 || msgs[0].Role != models.RoleModel || msgs[0].Content != Greeting {
		t.Fatalf("unexpected initial transcript: %+v", msgs)
	}
}

func TestSendAppendsReply(t *testing.T) {
	a := &fakeAssistant{reply: "Try a neon koi pond at dusk."}
	tr := NewTranscript(a, nil)

	reply, err := tr.Send(context.Background(), "  give me an idea ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != a.reply {
		t.Errorf("reply = %q", reply)
	}

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(msgs))
	}
	if msgs[1].Role != models.RoleUser || msgs[1].Content != "give me an idea" {
		t.Errorf("user message = %+v", msgs[1])
	}
	if msgs[2].Role != models.RoleModel || msgs[2].Content != a.reply {
		t.Errorf("model message = %+v", msgs[2])
	}
}

func TestSendRejectsEmpty(t *testing.T) {
	a := &fakeAssistant{}
	tr := NewTranscript(a, nil)

	if _, err := tr.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if a.calls != 0 {
		t.Errorf("assistant called %d times", a.calls)
	}
}

func TestSendFailureRecordsSystemError(t *testing.T) {
	a := &fakeAssistant{err: errors.New("quota exceeded")}
	tr := NewTranscript(a, nil)

	_, err := tr.Send(context.Background(), "hello")
	if err == nil || err.Error() != "SYSTEM ERROR: quota exceeded" {
		t.Fatalf("err = %v", err)
	}
	if tr.Err() != "SYSTEM ERROR: quota exceeded" {
		t.Errorf("Err() = %q", tr.Err())
	}
	if n := len(tr.Messages()); n != 2 {
		t.Errorf("len(messages) = %d, want greeting + user", n)
	}

	a.err = nil
	a.reply = "ok"
	if _, err := tr.Send(context.Background(), "again"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tr.Err() != "" {
		t.Errorf("error should clear on a new send, got %q", tr.Err())
	}
	if resp := tr.Response(); resp.Error != nil || resp.Pending {
		t.Errorf("unexpected response state: %+v", resp)
	}
}

func TestSendWhilePending(t *testing.T) {
	a := &fakeAssistant{reply: "done", block: make(chan struct{})}
	tr := NewTranscript(a, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Send(context.Background(), "first")
		done <- err
	}()

	for !tr.Pending() {
		time.Sleep(time.Millisecond)
	}
	if _, err := tr.Send(context.Background(), "second"); !errors.Is(err, ErrPending) {
		t.Errorf("err = %v, want ErrPending", err)
	}
	if !tr.Response().Pending {
		t.Error("response should report pending")
	}

	close(a.block)
	if err := <-done; err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if n := len(tr.Messages()); n != 3 {
		t.Errorf("len(messages) = %d, want 3", n)
	}
}
