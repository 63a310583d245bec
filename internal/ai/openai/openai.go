// Package openai proxies chat completions and speech synthesis to the OpenAI
// API and to OpenAI-compatible vendors such as Groq.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	Provider       = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	GroqProvider = "groq"
	GroqBaseURL  = "https://api.groq.com/openai/v1"
	GroqModel    = "llama-3.3-70b-versatile"

	DefaultSpeechModel = "tts-1"
	DefaultVoice       = "alloy"
)

type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	SpeechModel string
	Voice       string
	Timeout     time.Duration
}

type Client struct {
	provider    string
	http        *ai.Client
	model       string
	speechModel string
	voice       string
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		provider = Provider
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is required", provider)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	model := strings.TrimSpace(cfg.Model)
	switch provider {
	case GroqProvider:
		baseURL = firstNonEmpty(baseURL, GroqBaseURL)
		model = firstNonEmpty(model, GroqModel)
	default:
		baseURL = firstNonEmpty(baseURL, DefaultBaseURL)
		model = firstNonEmpty(model, DefaultModel)
	}

	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	return &Client{
		provider:    provider,
		http:        ai.NewClient(provider, baseURL, headers, cfg.Timeout, logger),
		model:       model,
		speechModel: firstNonEmpty(strings.TrimSpace(cfg.SpeechModel), DefaultSpeechModel),
		voice:       firstNonEmpty(strings.TrimSpace(cfg.Voice), DefaultVoice),
	}, nil
}

// NewGroq returns a client pointed at the Groq OpenAI-compatible endpoint.
func NewGroq(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	return New(Config{Provider: GroqProvider, APIKey: apiKey, BaseURL: baseURL, Model: model, Timeout: timeout}, logger)
}

func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

func (c *Client) Complete(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.http.PostJSON(ctx, "/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, "")
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("%s: invalid json response", c.provider)
	}
	parsed := gjson.ParseBytes(resp.Body)

	content := strings.TrimSpace(parsed.Get("choices.0.message.content").String())
	if content == "" {
		return nil, fmt.Errorf("%s: empty response", c.provider)
	}

	model := parsed.Get("model").String()
	if model == "" {
		model = c.model
	}

	return &ai.ChatResponse{
		Provider:     c.provider,
		Model:        model,
		Content:      content,
		InputTokens:  int(parsed.Get("usage.prompt_tokens").Int()),
		OutputTokens: int(parsed.Get("usage.completion_tokens").Int()),
	}, nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (c *Client) Speak(ctx context.Context, req ai.SpeechRequest) (*ai.Audio, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	resp, err := c.http.PostJSON(ctx, "/audio/speech", speechRequest{
		Model:          c.speechModel,
		Input:          req.Text,
		Voice:          firstNonEmpty(req.Voice, c.voice),
		ResponseFormat: "mp3",
	}, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, errors.New("openai: empty audio response")
	}

	return &ai.Audio{ContentType: firstNonEmpty(resp.ContentType, "audio/mpeg"), Data: resp.Body}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
