// Package simli starts audio-to-video avatar sessions on Simli.
package simli

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
	Provider       = "simli"
	DefaultBaseURL = "https://api.simli.ai"
)

type Client struct {
	http   *ai.Client
	apiKey string
	faceID string
}

func New(apiKey, baseURL, faceID string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	faceID = strings.TrimSpace(faceID)
	if apiKey == "" || faceID == "" {
		return nil, errors.New("simli api key and face id are required")
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		http:   ai.NewClient(Provider, baseURL, nil, timeout, logger),
		apiKey: apiKey,
		faceID: faceID,
	}, nil
}

type sessionRequest struct {
	FaceID         string `json:"faceId"`
	IsJPG          bool   `json:"isJPG"`
	APIKey         string `json:"apiKey"`
	SyncAudio      bool   `json:"syncAudio"`
	HandleSilence  bool   `json:"handleSilence"`
	MaxSessionTime int    `json:"maxSessionLength"`
	MaxIdleTime    int    `json:"maxIdleTime"`
}

// StartSession asks Simli for a session token the browser uses to stream the avatar.
func (c *Client) StartSession(ctx context.Context) (*ai.AvatarSession, error) {
	resp, err := c.http.PostJSON(ctx, "/startAudioToVideoSession", sessionRequest{
		FaceID:         c.faceID,
		APIKey:         c.apiKey,
		SyncAudio:      true,
		HandleSilence:  true,
		MaxSessionTime: 3600,
		MaxIdleTime:    300,
	}, "")
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(gjson.GetBytes(resp.Body, "session_token").String())
	if token == "" {
		return nil, errors.New("simli: response has no session token")
	}

	return &ai.AvatarSession{SessionToken: token, FaceID: c.faceID}, nil
}
