package store

import (
	"context"
	"strings"
)

const (
	JobDraft  = "draft"
	JobOpen   = "open"
	JobClosed = "closed"
)

type Job struct {
	ID                 string     `db:"id" json:"id"`
	Title              string     `db:"title" json:"title" yaml:"title"`
	Department         string     `db:"department" json:"department" yaml:"department"`
	Location           string     `db:"location" json:"location" yaml:"location"`
	EmploymentType     string     `db:"employment_type" json:"employment_type" yaml:"employment_type"`
	Description        string     `db:"description" json:"description" yaml:"description"`
	Requirements       StringList `db:"requirements" json:"requirements" yaml:"requirements"`
	MinExperienceYears int        `db:"min_experience_years" json:"min_experience_years" yaml:"min_experience_years"`
	Status             string     `db:"status" json:"status" yaml:"status"`
	CreatedBy          string     `db:"created_by" json:"created_by" yaml:"-"`
	CreatedAt          int64      `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt          int64      `db:"updated_at" json:"updated_at" yaml:"-"`
}

type JobPatch struct {
	Title              *string   `json:"title"`
	Department         *string   `json:"department"`
	Location           *string   `json:"location"`
	EmploymentType     *string   `json:"employment_type"`
	Description        *string   `json:"description"`
	Requirements       *[]string `json:"requirements"`
	MinExperienceYears *int      `json:"min_experience_years"`
	Status             *string   `json:"status"`
}

const jobColumns = "id, title, department, location, employment_type, description, requirements, min_experience_years, status, created_by, created_at, updated_at"

func ValidJobStatus(status string) bool {
	switch status {
	case JobDraft, JobOpen, JobClosed:
		return true
	default:
		return false
	}
}

func (s *Store) CreateJob(ctx context.Context, j *Job) (*Job, error) {
	j.Title = strings.TrimSpace(j.Title)
	if j.Title == "" {
		return nil, invalid("job title is required")
	}
	if j.Status == "" {
		j.Status = JobDraft
	}
	if !ValidJobStatus(j.Status) {
		return nil, invalid("unknown job status %q", j.Status)
	}
	if j.MinExperienceYears < 0 {
		return nil, invalid("min_experience_years must not be negative")
	}

	now := s.stamp()
	j.ID = newID()
	j.Requirements = cleanList(j.Requirements)
	j.CreatedAt = now
	j.UpdatedAt = now

	query := s.db.Rebind(`INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		j.ID, j.Title, j.Department, j.Location, j.EmploymentType, j.Description, j.Requirements,
		j.MinExperienceYears, j.Status, j.CreatedBy, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return nil, wrapWrite(err, "job")
	}

	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := s.db.GetContext(ctx, &j, s.db.Rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	if err != nil {
		return nil, wrapGet(err, "job")
	}
	return &j, nil
}

// ListJobs returns jobs, newest first. An empty status lists every job.
func (s *Store) ListJobs(ctx context.Context, status string) ([]*Job, error) {
	jobs := []*Job{}

	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &jobs, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id`)
	} else {
		if !ValidJobStatus(status) {
			return nil, invalid("unknown job status %q", status)
		}
		err = s.db.SelectContext(ctx, &jobs,
			s.db.Rebind(`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC, id`), status)
	}
	if err != nil {
		return nil, wrapGet(err, "jobs")
	}

	return jobs, nil
}

func (s *Store) PatchJob(ctx context.Context, id string, patch Patch) (*Job, error) {
	var p JobPatch
	if err := decodePatch(patch, &p); err != nil {
		return nil, err
	}

	sets := &setList{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, invalid("job title must not be empty")
		}
		sets.add("title", title)
	}
	if p.Department != nil {
		sets.add("department", strings.TrimSpace(*p.Department))
	}
	if p.Location != nil {
		sets.add("location", strings.TrimSpace(*p.Location))
	}
	if p.EmploymentType != nil {
		sets.add("employment_type", strings.TrimSpace(*p.EmploymentType))
	}
	if p.Description != nil {
		sets.add("description", *p.Description)
	}
	if p.Requirements != nil {
		sets.add("requirements", cleanList(*p.Requirements))
	}
	if p.MinExperienceYears != nil {
		if *p.MinExperienceYears < 0 {
			return nil, invalid("min_experience_years must not be negative")
		}
		sets.add("min_experience_years", *p.MinExperienceYears)
	}
	if p.Status != nil {
		if !ValidJobStatus(*p.Status) {
			return nil, invalid("unknown job status %q", *p.Status)
		}
		sets.add("status", *p.Status)
	}

	if err := s.update(ctx, s.db, "jobs", id, sets); err != nil {
		return nil, err
	}

	return s.GetJob(ctx, id)
}

// CountJobsByStatus returns the number of jobs per status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
	}{}

	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM jobs GROUP BY status`); err != nil {
		return nil, wrapGet(err, "job counts")
	}

	counts := map[string]int{JobDraft: 0, JobOpen: 0, JobClosed: 0}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	return counts, nil
}
