package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/logger"
	"github.com/spigell/hireloop/internal/store"
)

const maxBodyBytes = 1 << 20

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("forbidden")
	errRateLimited  = errors.New("rate limit exceeded")
	errUpstream     = errors.New("ai provider request failed")
)

type errorBody struct {
	Error string `json:"error"`
}

// badRequest marks client mistakes that are not store or ai validation errors.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func invalidBody(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON value. An empty body is allowed when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return invalidBody("malformed JSON body: %v", err)
	}
	return nil
}

// statusOf maps an error to its response status and public message.
func statusOf(err error) (int, string) {
	var br *badRequest
	var perr *ai.ProviderError

	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case errors.Is(err, errUnauthorized), errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, store.ErrInvalid), errors.Is(err, ai.ErrInvalidRequest), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ai.ErrProviderNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, errUpstream), errors.As(err, &perr):
		return http.StatusBadGateway, errUpstream.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)

	var userID string
	if id := identityFrom(r.Context()); id != nil {
		userID = id.UserID
	}

	fields := append(logger.RequestFields(middleware.GetReqID(r.Context()), userID),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}

	writeJSON(w, status, errorBody{Error: msg})
}

// upstream classifies an error returned by a provider call. Validation and
// configuration errors pass through; anything else is a gateway failure.
func upstream(err error) error {
	if err == nil || errors.Is(err, ai.ErrInvalidRequest) || errors.Is(err, ai.ErrProviderNotConfigured) {
		return err
	}
	return fmt.Errorf("%w: %w", errUpstream, err)
}
