package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestAssistant(t *testing.T, handler http.HandlerFunc) *OpenAIAssistant {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return newOpenAIAssistantWithConfig(cfg, "")
}

func TestOpenAIAssistantReply(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	a := newTestAssistant(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Try a neon koi pond at dusk.  "}}]}`))
	})

	reply, err := a.GetBotResponse(context.Background(), "give me an idea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Try a neon koi pond at dusk." {
		t.Errorf("reply = %q", reply)
	}
	if gotReq.Model != defaultOpenAIModel {
		t.Errorf("model = %q, want %q", gotReq.Model, defaultOpenAIModel)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("expected system + user messages, got %+v", gotReq.Messages)
	}
}

func TestOpenAIAssistantUnauthorized(t *testing.T) {
	a := newTestAssistant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	})

	_, err := a.GetBotResponse(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindCredentialInvalid {
		t.Errorf("kind = %v, want credential_invalid", KindOf(err))
	}
}

func TestOpenAIAssistantEmptyChoices(t *testing.T) {
	a := newTestAssistant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	if _, err := a.GetBotResponse(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
