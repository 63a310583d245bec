package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/store"
)

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	profile, err := s.store.GetProfileByUserID(r.Context(), id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		profile, err = &store.Profile{UserID: id.UserID, Skills: store.StringList{}, Links: store.StringList{}}, nil
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) patchProfile(w http.ResponseWriter, r *http.Request) {
	var patch store.Patch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.store.PatchProfile(r.Context(), identityFrom(r.Context()).UserID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type onboardingView struct {
	Profile *store.Profile `json:"profile"`
	sessionView
}

// completeOnboarding saves the submitted profile fields and flips the
// onboarded flag. The session is reissued so the new flag reaches both sides.
func (s *Server) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	patch := store.Patch{}
	if err := decodeJSON(r, &patch, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	userID := identityFrom(ctx).UserID

	profile, err := s.store.PatchProfile(ctx, userID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.store.PatchUser(ctx, userID, store.Patch{"onboarded": true})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.signIn(r, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, onboardingView{Profile: profile, sessionView: viewOf(id)})
}

func (s *Server) openJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), store.JobOpen)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) applyToJob(w http.ResponseWriter, r *http.Request) {
	app, err := s.store.CreateApplication(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) myInterviews(w http.ResponseWriter, r *http.Request) {
	interviews, err := s.store.ListInterviewsByCandidate(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interviews": interviews})
}

// ownInterview looks up an invitation by access code. Someone else's code is
// reported as missing.
func (s *Server) ownInterview(ctx context.Context, code string) (*store.Interview, error) {
	iv, err := s.store.GetInterviewByAccessCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if iv.CandidateID != identityFrom(ctx).UserID {
		return nil, fmt.Errorf("interview: %w", store.ErrNotFound)
	}
	return iv, nil
}

type interviewView struct {
	Interview *store.Interview `json:"interview"`
	Job       *store.Job       `json:"job"`
}

func (s *Server) startInterview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	iv, err := s.ownInterview(ctx, chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	iv, err = s.store.StartInterview(ctx, iv.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.store.GetJob(ctx, iv.JobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, interviewView{Interview: iv, Job: job})
}

type completeRequest struct {
	Transcript string `json:"transcript"`
}

// completeInterview stores the transcript with the AI verdict. Without a chat
// provider the interview is closed unclassified.
func (s *Server) completeInterview(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		s.writeError(w, r, invalidBody("transcript is required"))
		return
	}

	ctx := r.Context()
	iv, err := s.ownInterview(ctx, chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if iv.Status != store.InterviewInProgress {
		s.writeError(w, r, fmt.Errorf("interview is %s: %w", iv.Status, store.ErrConflict))
		return
	}

	job, err := s.store.GetJob(ctx, iv.JobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result := store.InterviewResult{Transcript: req.Transcript}

	verdict, err := s.classifier.Classify(ctx, req.Transcript, jobSummary(job))
	switch {
	case errors.Is(err, ai.ErrProviderNotConfigured):
		s.logger.Warn("completing interview without classification", zap.String("interview_id", iv.ID))
	case err != nil:
		s.writeError(w, r, upstream(err))
		return
	default:
		score := verdict.Score
		result.Outcome, result.Summary, result.Score = verdict.Outcome, verdict.Summary, &score
	}

	iv, err = s.store.CompleteInterview(ctx, iv.ID, result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func jobSummary(job *store.Job) string {
	var b strings.Builder
	b.WriteString(job.Title)
	if len(job.Requirements) > 0 {
		b.WriteString("\nRequirements: ")
		b.WriteString(strings.Join(job.Requirements, "; "))
	}
	if job.Description != "" {
		b.WriteString("\n")
		b.WriteString(job.Description)
	}
	return b.String()
}
