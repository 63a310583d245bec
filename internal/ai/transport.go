package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/hireloop/internal/logger"
	"go.uber.org/zap"
)

const (
	contentTypeJSON   = "application/json"
	maxResponseBytes  = 16 << 20
	maxErrorBodyChars = 300
	defaultTimeout    = 60 * time.Second
)

// Client carries the connection details of one vendor API.
type Client struct {
	Provider   string
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(provider, baseURL string, headers map[string]string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		Provider:   provider,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Headers:    headers,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger.WithFields(log, zap.String(logger.FieldProvider, provider)),
	}
}

// Response is a fully read 2xx vendor response.
type Response struct {
	ContentType string
	Body        []byte
}

// PostJSON sends payload as JSON and returns the raw response. Non-2xx
// statuses become *ProviderError.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, accept string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", c.Provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.Provider, err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentTypeJSON)
	if accept == "" {
		accept = contentTypeJSON
	}
	req.Header.Set("Accept", accept)

	return c.request(req)
}

func (c *Client) request(req *http.Request) (*Response, error) {
	started := time.Now()
	c.Logger.Debug("make request", zap.String("url", req.URL.Path))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: call api: %w", c.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.Provider, err)
	}

	c.Logger.Debug("got response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider: c.Provider,
			Status:   resp.StatusCode,
			Body:     logger.TruncateForLog(string(data), maxErrorBodyChars),
		}
	}

	return &Response{ContentType: resp.Header.Get("Content-Type"), Body: data}, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	for key, val := range c.Headers {
		req.Header.Set(key, val)
	}
	req.Header.Set("User-Agent", "hireloop")

	return req
}
