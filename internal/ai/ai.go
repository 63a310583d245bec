// Package ai defines the provider-neutral shapes of the AI proxy routes and the
// HTTP plumbing shared by the vendor clients.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/hireloop/internal/store"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultMaxTokens = 1024
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type ChatResponse struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type Audio struct {
	ContentType string
	Data        []byte
}

type AvatarSession struct {
	SessionToken string `json:"session_token"`
	FaceID       string `json:"face_id"`
}

type FitAssessment struct {
	Fit     bool
	Score   float64
	Reason  string
	Message string
	Raw     string
}

type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type Speaker interface {
	Speak(ctx context.Context, req SpeechRequest) (*Audio, error)
}

type AvatarStarter interface {
	StartSession(ctx context.Context) (*AvatarSession, error)
}

// Matcher judges how well a candidate profile fits a job.
type Matcher interface {
	Evaluate(ctx context.Context, profile *store.Profile, job *store.Job) (*FitAssessment, error)
}

var (
	ErrProviderNotConfigured = errors.New("ai provider is not configured")
	ErrInvalidRequest        = errors.New("invalid ai request")
)

// ProviderError is a non-2xx response from a vendor API.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// Normalize validates the request and fills defaults.
func (r ChatRequest) Normalize() (ChatRequest, error) {
	if len(r.Messages) == 0 {
		return r, fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}

	messages := make([]Message, 0, len(r.Messages))
	for i, m := range r.Messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != RoleUser && role != RoleAssistant {
			return r, fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidRequest, i, m.Role)
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return r, fmt.Errorf("%w: message %d is empty", ErrInvalidRequest, i)
		}
		messages = append(messages, Message{Role: role, Content: content})
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return r, fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidRequest)
	}

	r.Messages = messages
	r.System = strings.TrimSpace(r.System)
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaultMaxTokens
	}
	return r, nil
}

func (r SpeechRequest) Normalize() (SpeechRequest, error) {
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return r, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	r.Voice = strings.TrimSpace(r.Voice)
	return r, nil
}
