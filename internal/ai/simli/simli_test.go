package simli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/startAudioToVideoSession" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.FaceID != "face-1" || body.APIKey != "key" {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"session_token":"tok-123"}`))
	}))
	defer srv.Close()

	c, err := New("key", srv.URL, "face-1", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	sess, err := c.StartSession(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.SessionToken != "tok-123" || sess.FaceID != "face-1" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestStartSessionWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail":"ok"}`))
	}))
	defer srv.Close()

	c, err := New("key", srv.URL, "face-1", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.StartSession(context.Background()); err == nil {
		t.Fatal("expected error for missing token")
	}
}
