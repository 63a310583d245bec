package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	InterviewScheduled  = "scheduled"
	InterviewInProgress = "in_progress"
	InterviewCompleted  = "completed"
	InterviewExpired    = "expired"
)

type Interview struct {
	ID            string   `db:"id" json:"id"`
	ApplicationID string   `db:"application_id" json:"application_id"`
	JobID         string   `db:"job_id" json:"job_id"`
	CandidateID   string   `db:"candidate_id" json:"candidate_id"`
	AccessCode    string   `db:"access_code" json:"access_code"`
	Status        string   `db:"status" json:"status"`
	ExpiresAt     int64    `db:"expires_at" json:"expires_at"`
	StartedAt     *int64   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *int64   `db:"completed_at" json:"completed_at,omitempty"`
	Transcript    string   `db:"transcript" json:"transcript,omitempty"`
	Outcome       string   `db:"outcome" json:"outcome,omitempty"`
	Summary       string   `db:"summary" json:"summary,omitempty"`
	Score         *float64 `db:"score" json:"score,omitempty"`
	CreatedAt     int64    `db:"created_at" json:"created_at"`
	UpdatedAt     int64    `db:"updated_at" json:"updated_at"`
}

// InterviewResult is what the completion step records.
type InterviewResult struct {
	Transcript string
	Outcome    string
	Summary    string
	Score      *float64
}

const interviewColumns = "id, application_id, job_id, candidate_id, access_code, status, expires_at, started_at, completed_at, transcript, outcome, summary, score, created_at, updated_at"

// CreateInterview invites the application's candidate to an AI interview valid for ttl.
// The application moves to the interview stage.
func (s *Store) CreateInterview(ctx context.Context, applicationID string, ttl time.Duration) (*Interview, error) {
	if ttl <= 0 {
		return nil, invalid("interview ttl must be positive")
	}

	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if TerminalStage(app.Stage) {
		return nil, fmt.Errorf("application %s is %s: %w", applicationID, app.Stage, ErrConflict)
	}

	code, err := accessCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	iv := &Interview{
		ID:            newID(),
		ApplicationID: app.ID,
		JobID:         app.JobID,
		CandidateID:   app.CandidateID,
		AccessCode:    code,
		Status:        InterviewScheduled,
		ExpiresAt:     now.Add(ttl).UnixMilli(),
		CreatedAt:     now.UnixMilli(),
		UpdatedAt:     now.UnixMilli(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := s.db.Rebind(`INSERT INTO interviews (` + interviewColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		iv.ID, iv.ApplicationID, iv.JobID, iv.CandidateID, iv.AccessCode, iv.Status, iv.ExpiresAt,
		nullInt(iv.StartedAt), nullInt(iv.CompletedAt), iv.Transcript, iv.Outcome, iv.Summary, nullFloat(iv.Score), iv.CreatedAt, iv.UpdatedAt)
	if err != nil {
		return nil, wrapWrite(err, "interview")
	}

	if app.Stage != StageInterview {
		sets := &setList{}
		sets.add("stage", StageInterview)
		if err := s.update(ctx, tx, "applications", app.ID, sets); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit interview: %w", err)
	}

	return iv, nil
}

func (s *Store) GetInterview(ctx context.Context, id string) (*Interview, error) {
	var iv Interview
	err := s.db.GetContext(ctx, &iv, s.db.Rebind(`SELECT `+interviewColumns+` FROM interviews WHERE id = ?`), id)
	if err != nil {
		return nil, wrapGet(err, "interview")
	}
	return &iv, nil
}

func (s *Store) GetInterviewByAccessCode(ctx context.Context, code string) (*Interview, error) {
	var iv Interview
	err := s.db.GetContext(ctx, &iv,
		s.db.Rebind(`SELECT `+interviewColumns+` FROM interviews WHERE access_code = ?`), strings.TrimSpace(code))
	if err != nil {
		return nil, wrapGet(err, "interview")
	}
	return &iv, nil
}

func (s *Store) ListInterviewsByCandidate(ctx context.Context, candidateID string) ([]*Interview, error) {
	out := []*Interview{}
	err := s.db.SelectContext(ctx, &out,
		s.db.Rebind(`SELECT `+interviewColumns+` FROM interviews WHERE candidate_id = ? ORDER BY created_at DESC, id`), candidateID)
	if err != nil {
		return nil, wrapGet(err, "interviews")
	}
	return out, nil
}

// HasInterviewForJob reports whether the candidate was already invited for the job.
func (s *Store) HasInterviewForJob(ctx context.Context, jobID, candidateID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.db.Rebind(`SELECT COUNT(*) FROM interviews WHERE job_id = ? AND candidate_id = ?`), jobID, candidateID)
	if err != nil {
		return false, wrapGet(err, "interview count")
	}
	return n > 0, nil
}

// StartInterview moves a scheduled interview to in_progress.
// Expired invitations are marked expired and rejected.
func (s *Store) StartInterview(ctx context.Context, id string) (*Interview, error) {
	iv, err := s.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	switch iv.Status {
	case InterviewInProgress:
		return iv, nil
	case InterviewScheduled:
	default:
		return nil, fmt.Errorf("interview %s is %s: %w", id, iv.Status, ErrConflict)
	}

	sets := &setList{}
	sets.guard("status = ?", InterviewScheduled)
	if now > iv.ExpiresAt {
		sets.add("status", InterviewExpired)
		if err := s.interviewMoved(ctx, id, s.update(ctx, s.db, "interviews", id, sets)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("interview %s has expired: %w", id, ErrConflict)
	}

	sets.add("status", InterviewInProgress)
	sets.add("started_at", now)
	if err := s.interviewMoved(ctx, id, s.update(ctx, s.db, "interviews", id, sets)); err != nil {
		return nil, err
	}

	return s.GetInterview(ctx, id)
}

// CompleteInterview records the result of an in-progress interview.
func (s *Store) CompleteInterview(ctx context.Context, id string, res InterviewResult) (*Interview, error) {
	iv, err := s.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.Status != InterviewInProgress {
		return nil, fmt.Errorf("interview %s is %s: %w", id, iv.Status, ErrConflict)
	}

	sets := &setList{}
	sets.add("status", InterviewCompleted)
	sets.add("completed_at", s.now().UnixMilli())
	sets.add("transcript", res.Transcript)
	sets.add("outcome", res.Outcome)
	sets.add("summary", res.Summary)
	sets.add("score", nullFloat(res.Score))
	sets.guard("status = ?", InterviewInProgress)

	if err := s.interviewMoved(ctx, id, s.update(ctx, s.db, "interviews", id, sets)); err != nil {
		return nil, err
	}

	return s.GetInterview(ctx, id)
}

// interviewMoved turns a guarded update that matched nothing into a conflict
// naming the status the interview holds now.
func (s *Store) interviewMoved(ctx context.Context, id string, err error) error {
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	iv, gerr := s.GetInterview(ctx, id)
	if gerr != nil {
		return gerr
	}
	return fmt.Errorf("interview %s is %s: %w", id, iv.Status, ErrConflict)
}

// ExpireInterviews marks scheduled interviews past their deadline as expired.
func (s *Store) ExpireInterviews(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE interviews SET status = ?, updated_at = ? WHERE status = ? AND expires_at < ?`),
		InterviewExpired, now.UnixMilli(), InterviewScheduled, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("expire interviews: %w", err)
	}
	return res.RowsAffected()
}

// CountInterviewsCompletedSince counts interviews completed at or after since.
func (s *Store) CountInterviewsCompletedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.db.Rebind(`SELECT COUNT(*) FROM interviews WHERE status = ? AND completed_at >= ?`),
		InterviewCompleted, since.UnixMilli())
	if err != nil {
		return 0, wrapGet(err, "completed interviews")
	}
	return n, nil
}

func accessCode() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return hex.EncodeToString(b), nil
}
