package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	StageApplied   = "applied"
	StageScreening = "screening"
	StageInterview = "interview"
	StageOffer     = "offer"
	StageHired     = "hired"
	StageRejected  = "rejected"
)

// Stages lists pipeline stages in board order.
var Stages = []string{StageApplied, StageScreening, StageInterview, StageOffer, StageHired, StageRejected}

type Application struct {
	ID          string   `db:"id" json:"id"`
	JobID       string   `db:"job_id" json:"job_id"`
	CandidateID string   `db:"candidate_id" json:"candidate_id"`
	Stage       string   `db:"stage" json:"stage"`
	FitScore    *float64 `db:"fit_score" json:"fit_score,omitempty"`
	FitReason   string   `db:"fit_reason" json:"fit_reason,omitempty"`
	CreatedAt   int64    `db:"created_at" json:"created_at"`
	UpdatedAt   int64    `db:"updated_at" json:"updated_at"`
}

// PipelineEntry is an application joined with the candidate's account.
type PipelineEntry struct {
	Application
	CandidateName  string `db:"candidate_name" json:"candidate_name"`
	CandidateEmail string `db:"candidate_email" json:"candidate_email"`
}

type ApplicationPatch struct {
	Stage     *string  `json:"stage"`
	FitScore  *float64 `json:"fit_score"`
	FitReason *string  `json:"fit_reason"`
}

const applicationColumns = "id, job_id, candidate_id, stage, fit_score, fit_reason, created_at, updated_at"

func ValidStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// TerminalStage reports whether no further moves are allowed from the stage.
func TerminalStage(stage string) bool {
	return stage == StageHired || stage == StageRejected
}

// CreateApplication puts a candidate into a job's pipeline. Only open jobs accept applications.
func (s *Store) CreateApplication(ctx context.Context, jobID, candidateID string) (*Application, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobOpen {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrConflict)
	}

	now := s.stamp()
	a := &Application{
		ID:          newID(),
		JobID:       jobID,
		CandidateID: candidateID,
		Stage:       StageApplied,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := s.db.Rebind(`INSERT INTO applications (` + applicationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.JobID, a.CandidateID, a.Stage, nullFloat(a.FitScore), a.FitReason, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return nil, wrapWrite(err, "application")
	}

	return a, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*Application, error) {
	var a Application
	err := s.db.GetContext(ctx, &a, s.db.Rebind(`SELECT `+applicationColumns+` FROM applications WHERE id = ?`), id)
	if err != nil {
		return nil, wrapGet(err, "application")
	}
	return &a, nil
}

func (s *Store) ListApplicationsByJob(ctx context.Context, jobID string) ([]*Application, error) {
	apps := []*Application{}
	err := s.db.SelectContext(ctx, &apps,
		s.db.Rebind(`SELECT `+applicationColumns+` FROM applications WHERE job_id = ? ORDER BY created_at, id`), jobID)
	if err != nil {
		return nil, wrapGet(err, "applications")
	}
	return apps, nil
}

func (s *Store) ListApplicationsByCandidate(ctx context.Context, candidateID string) ([]*Application, error) {
	apps := []*Application{}
	err := s.db.SelectContext(ctx, &apps,
		s.db.Rebind(`SELECT `+applicationColumns+` FROM applications WHERE candidate_id = ? ORDER BY created_at DESC, id`), candidateID)
	if err != nil {
		return nil, wrapGet(err, "applications")
	}
	return apps, nil
}

// ListPipeline returns the job's applications with candidate names, ordered by fit score.
func (s *Store) ListPipeline(ctx context.Context, jobID string) ([]*PipelineEntry, error) {
	cols := make([]string, 0, 8)
	for _, c := range strings.Split(applicationColumns, ", ") {
		cols = append(cols, "a."+c)
	}

	query := `SELECT ` + strings.Join(cols, ", ") + `, u.name AS candidate_name, u.email AS candidate_email
		FROM applications a JOIN users u ON u.id = a.candidate_id
		WHERE a.job_id = ?
		ORDER BY CASE WHEN a.fit_score IS NULL THEN 1 ELSE 0 END, a.fit_score DESC, a.created_at, a.id`

	entries := []*PipelineEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), jobID); err != nil {
		return nil, wrapGet(err, "pipeline")
	}
	return entries, nil
}

// PatchApplication updates stage and fit data. Leaving a terminal stage is a
// conflict, also when a concurrent update got there first.
func (s *Store) PatchApplication(ctx context.Context, id string, patch Patch) (*Application, error) {
	var p ApplicationPatch
	if err := decodePatch(patch, &p); err != nil {
		return nil, err
	}

	current, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	sets := &setList{}
	moving := p.Stage != nil && *p.Stage != current.Stage
	if moving {
		if !ValidStage(*p.Stage) {
			return nil, invalid("unknown stage %q", *p.Stage)
		}
		if TerminalStage(current.Stage) {
			return nil, leaveTerminal(id, current.Stage)
		}
		sets.add("stage", *p.Stage)
		sets.guard("stage NOT IN (?, ?)", StageHired, StageRejected)
	}
	if p.FitScore != nil {
		if *p.FitScore < 0 || *p.FitScore > 1 {
			return nil, invalid("fit_score must be within [0, 1]")
		}
		sets.add("fit_score", *p.FitScore)
	}
	if p.FitReason != nil {
		sets.add("fit_reason", strings.TrimSpace(*p.FitReason))
	}

	err = s.update(ctx, s.db, "applications", id, sets)
	if moving && errors.Is(err, ErrNotFound) {
		latest, gerr := s.GetApplication(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, leaveTerminal(id, latest.Stage)
	}
	if err != nil {
		return nil, err
	}

	return s.GetApplication(ctx, id)
}

func leaveTerminal(id, stage string) error {
	return fmt.Errorf("application %s is already %s: %w", id, stage, ErrConflict)
}

// CountApplicationsByStage returns per-stage counts with every stage present.
func (s *Store) CountApplicationsByStage(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Stage string `db:"stage"`
		Count int    `db:"n"`
	}{}

	if err := s.db.SelectContext(ctx, &rows, `SELECT stage, COUNT(*) AS n FROM applications GROUP BY stage`); err != nil {
		return nil, wrapGet(err, "stage counts")
	}

	counts := make(map[string]int, len(Stages))
	for _, stage := range Stages {
		counts[stage] = 0
	}
	for _, r := range rows {
		counts[r.Stage] = r.Count
	}

	return counts, nil
}

// AverageFitScore averages scored applications. ok is false when none are scored.
func (s *Store) AverageFitScore(ctx context.Context) (avg float64, ok bool, err error) {
	var v *float64
	if err := s.db.GetContext(ctx, &v, `SELECT AVG(fit_score) FROM applications WHERE fit_score IS NOT NULL`); err != nil {
		return 0, false, wrapGet(err, "average fit score")
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}
