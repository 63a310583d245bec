package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared across packages.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
)

// Compact turns key/value pairs into string fields, dropping pairs where either
// side is blank. A trailing key without a value is ignored.
func Compact(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithFields attaches fields to logger, which may be nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// ForProvider tags a logger used by an AI client.
func ForProvider(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, Compact(FieldProvider, provider, FieldModel, model)...)
}

// RequestFields identifies an API request and, when known, its caller.
func RequestFields(requestID, userID string) []zap.Field {
	return Compact(FieldRequestID, requestID, FieldUserID, userID)
}
