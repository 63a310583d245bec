// Package screening narrows a job's applications down to a shortlist by
// running a sequence of filters over them.
package screening

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/store"
	"go.uber.org/zap"
)

// Filter represents a single screening step applied to candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error)
}

// Store is the part of the data-access layer the filters need.
type Store interface {
	ListApplicationsByJob(ctx context.Context, jobID string) ([]*store.Application, error)
	GetProfileByUserID(ctx context.Context, userID string) (*store.Profile, error)
	HasInterviewForJob(ctx context.Context, jobID, candidateID string) (bool, error)
	PatchApplication(ctx context.Context, id string, patch store.Patch) (*store.Application, error)
}

// Deps aggregates dependencies shared across all screening steps.
type Deps struct {
	Store   Store
	Logger  *zap.Logger
	Job     *store.Job
	Matcher ai.Matcher
}

// Step describes the result of executing a screening step.
type Step struct {
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

type Config struct {
	MinimumFitScore float64
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// Result is the outcome of a screening run.
type Result struct {
	Candidates  *Candidates
	Assessments map[string]*ai.FitAssessment
	Steps       []Step
}

// Default returns the standard filter chain.
func Default() []Filter {
	return []Filter{NewTerminalStage(), NewInterviewed(), NewMinExperience(), NewAIFit()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Load collects the job's applications together with candidate profiles.
// Candidates without a profile get an empty one.
func Load(ctx context.Context, st Store, jobID string) (*Candidates, error) {
	apps, err := st.ListApplicationsByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	items := make([]*Candidate, 0, len(apps))
	for _, app := range apps {
		profile, err := st.GetProfileByUserID(ctx, app.CandidateID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			profile = &store.Profile{UserID: app.CandidateID}
		case err != nil:
			return nil, fmt.Errorf("get profile of %s: %w", app.CandidateID, err)
		}
		items = append(items, &Candidate{Application: app, Profile: profile})
	}

	return &Candidates{Items: items}, nil
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, c *Candidates) (*Result, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Job == nil {
		return nil, fmt.Errorf("job is required")
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	result := &Result{Assessments: make(map[string]*ai.FitAssessment)}
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		info.Name = step.Name()
		deps.Logger.Info("filter step",
			zap.String("job_id", deps.Job.ID),
			zap.String("name", info.Name),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		c = next
		result.Steps = append(result.Steps, info)

		if collector, ok := step.(interface {
			Assessments() map[string]*ai.FitAssessment
		}); ok {
			for id, assessment := range collector.Assessments() {
				result.Assessments[id] = assessment
			}
		}
	}

	result.Candidates = c
	return result, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
