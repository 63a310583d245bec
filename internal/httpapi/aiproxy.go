package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/logger"
	"github.com/spigell/hireloop/internal/store"
)

// aiChat proxies one chat completion. Without an explicit system prompt the
// default knowledge base entry is used.
func (s *Server) aiChat(w http.ResponseWriter, r *http.Request) {
	var req ai.ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := req.Normalize()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.ai.Chat == nil {
		s.writeError(w, r, ai.ErrProviderNotConfigured)
		return
	}

	if req.System == "" {
		k, err := s.store.GetDefaultKnowledge(r.Context())
		switch {
		case err == nil:
			req.System = k.Content
		case !errors.Is(err, store.ErrNotFound):
			s.writeError(w, r, err)
			return
		}
	}

	s.logger.Debug("ai chat request",
		zap.Int("messages", len(req.Messages)),
		zap.String("system_preview", logger.TruncateForLog(req.System, s.opts.MaxLogLength)),
	)

	resp, err := s.ai.Chat.Complete(r.Context(), req)
	if err != nil {
		s.writeError(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyRequest struct {
	Transcript string `json:"transcript"`
	JobID      string `json:"job_id"`
}

func (s *Server) aiClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	var jobContext string
	if req.JobID != "" {
		job, err := s.store.GetJob(r.Context(), req.JobID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		jobContext = jobSummary(job)
	}

	verdict, err := s.classifier.Classify(r.Context(), req.Transcript, jobContext)
	if err != nil {
		s.writeError(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// aiSpeech returns the synthesized audio as the response body.
func (s *Server) aiSpeech(w http.ResponseWriter, r *http.Request) {
	var req ai.SpeechRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := req.Normalize()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.ai.Speech == nil {
		s.writeError(w, r, ai.ErrProviderNotConfigured)
		return
	}

	audio, err := s.ai.Speech.Speak(r.Context(), req)
	if err != nil {
		s.writeError(w, r, upstream(err))
		return
	}

	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func (s *Server) aiAvatarSession(w http.ResponseWriter, r *http.Request) {
	if s.ai.Avatar == nil {
		s.writeError(w, r, ai.ErrProviderNotConfigured)
		return
	}

	sess, err := s.ai.Avatar.StartSession(r.Context())
	if err != nil {
		s.writeError(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
