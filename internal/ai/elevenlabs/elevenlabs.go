// Package elevenlabs proxies text-to-speech requests to ElevenLabs.
package elevenlabs

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spigell/hireloop/internal/ai"
	"go.uber.org/zap"
)

const (
	Provider       = "elevenlabs"
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultModel   = "eleven_multilingual_v2"
)

type Client struct {
	http  *ai.Client
	model string
	voice string
}

func New(apiKey, baseURL, model, voice string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return nil, errors.New("elevenlabs voice id is required")
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	return &Client{
		http:  ai.NewClient(Provider, baseURL, map[string]string{"xi-api-key": apiKey}, timeout, logger),
		model: model,
		voice: voice,
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (c *Client) Speak(ctx context.Context, req ai.SpeechRequest) (*ai.Audio, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = c.voice
	}

	resp, err := c.http.PostJSON(ctx, "/v1/text-to-speech/"+url.PathEscape(voice), speechRequest{
		Text:          req.Text,
		ModelID:       c.model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	}, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, errors.New("elevenlabs: empty audio response")
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &ai.Audio{ContentType: contentType, Data: resp.Body}, nil
}
