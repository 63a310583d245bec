// Package anthropic proxies chat completions to the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	Provider       = "anthropic"
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-5"
	apiVersion     = "2023-06-01"
)

type Client struct {
	http  *ai.Client
	model string
}

func New(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": apiVersion,
	}

	return &Client{
		http:  ai.NewClient(Provider, baseURL, headers, timeout, logger),
		model: model,
	}, nil
}

func (c *Client) Model() string { return c.model }

type messagesRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []ai.Message `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
}

func (c *Client) Complete(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	resp, err := c.http.PostJSON(ctx, "/v1/messages", messagesRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}, "")
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, errors.New("anthropic: invalid json response")
	}
	parsed := gjson.ParseBytes(resp.Body)

	var parts []string
	parsed.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			if text := strings.TrimSpace(block.Get("text").String()); text != "" {
				parts = append(parts, text)
			}
		}
		return true
	})
	if len(parts) == 0 {
		return nil, errors.New("anthropic: empty response")
	}

	model := parsed.Get("model").String()
	if model == "" {
		model = c.model
	}

	return &ai.ChatResponse{
		Provider:     Provider,
		Model:        model,
		Content:      strings.Join(parts, "\n"),
		InputTokens:  int(parsed.Get("usage.input_tokens").Int()),
		OutputTokens: int(parsed.Get("usage.output_tokens").Int()),
	}, nil
}
