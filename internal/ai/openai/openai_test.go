package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spigell/hireloop/internal/ai"
	"go.uber.org/zap"
)

func TestCompleteSendsSystemFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}

		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":" Sure. "}}],"usage":{"prompt_tokens":7,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	resp, err := c.Complete(context.Background(), ai.ChatRequest{
		System:   "sys",
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "Sure." || resp.Model != "gpt-test" || resp.InputTokens != 7 || resp.OutputTokens != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSpeakReturnsBlob(t *testing.T) {
	audio := []byte{0xff, 0xfb, 0x90, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body speechRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Voice != "nova" || body.Input != "hello" {
			t.Errorf("unexpected body: %+v", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := c.Speak(context.Background(), ai.SpeechRequest{Text: " hello ", Voice: "nova"})
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if got.ContentType != "audio/mpeg" || !bytes.Equal(got.Data, audio) {
		t.Fatalf("unexpected audio: %+v", got)
	}
}

func TestGroqDefaults(t *testing.T) {
	c, err := NewGroq("key", "", "", 0, nil)
	if err != nil {
		t.Fatalf("new groq: %v", err)
	}
	if c.provider != GroqProvider || c.model != GroqModel || c.http.BaseURL != GroqBaseURL {
		t.Fatalf("unexpected groq client: provider=%s model=%s url=%s", c.provider, c.model, c.http.BaseURL)
	}

	if _, err := NewGroq("", "", "", 0, nil); err == nil {
		t.Fatal("expected error without key")
	}
}
