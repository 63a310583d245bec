package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/screening"
	"github.com/spigell/hireloop/internal/store"
)

func (s *Server) dashboardCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.analytics.Cards(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var job store.Job
	if err := decodeJSON(r, &job, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	job.CreatedBy = identityFrom(r.Context()).UserID

	created, err := s.store.CreateJob(r.Context(), &job)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) patchJob(w http.ResponseWriter, r *http.Request) {
	var patch store.Patch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.store.PatchJob(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) jobCandidates(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := s.store.GetJob(r.Context(), jobID); err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.store.ListPipeline(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": entries})
}

type shortlistRequest struct {
	MinimumFitScore *float64 `json:"minimum_fit_score"`
	Disable         []string `json:"disable"`
}

type shortlistView struct {
	Candidates []*screening.Candidate `json:"candidates"`
	Steps      []screening.Step       `json:"steps"`
	Filters    []screening.Status     `json:"filters"`
}

// shortlist runs the screening filters over the job's applications.
func (s *Server) shortlist(w http.ResponseWriter, r *http.Request) {
	var req shortlistRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cfg := s.opts.Screening
	if req.MinimumFitScore != nil {
		if *req.MinimumFitScore < 0 || *req.MinimumFitScore > 1 {
			s.writeError(w, r, invalidBody("minimum_fit_score must be within [0, 1]"))
			return
		}
		cfg.MinimumFitScore = *req.MinimumFitScore
	}

	steps := screening.Default()
	for _, name := range req.Disable {
		screening.DisableByName(steps, name, "disabled by request")
	}
	if s.ai.Matcher == nil {
		screening.DisableByName(steps, "ai_fit", "ai matcher is not configured")
	}

	candidates, err := screening.Load(r.Context(), s.store, job.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := screening.Run(r.Context(), &cfg, screening.Deps{
		Store:   s.store,
		Logger:  s.logger,
		Job:     job,
		Matcher: s.ai.Matcher,
	}, steps, candidates)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shortlistView{
		Candidates: result.Candidates.Items,
		Steps:      result.Steps,
		Filters:    screening.Describe(steps),
	})
}

func (s *Server) patchApplication(w http.ResponseWriter, r *http.Request) {
	var patch store.Patch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.store.PatchApplication(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type inviteRequest struct {
	TTLHours int `json:"ttl_hours"`
}

func (s *Server) inviteToInterview(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	ttl := s.opts.InterviewTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	iv, err := s.store.CreateInterview(r.Context(), chi.URLParam(r, "id"), ttl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("interview invitation created",
		zap.String("interview_id", iv.ID),
		zap.String("application_id", iv.ApplicationID),
	)
	writeJSON(w, http.StatusCreated, iv)
}

func (s *Server) getKnowledge(w http.ResponseWriter, r *http.Request) {
	k, err := s.store.ResolveKnowledge(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (s *Server) putKnowledge(w http.ResponseWriter, r *http.Request) {
	var patch store.Patch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	k, err := s.store.UpsertKnowledge(r.Context(), identityFrom(r.Context()).UserID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (s *Server) setDefaultKnowledge(w http.ResponseWriter, r *http.Request) {
	k, err := s.store.SetDefaultKnowledge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}
