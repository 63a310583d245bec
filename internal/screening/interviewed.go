package screening

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type interviewedFilter struct {
	disabled bool
	reason   string
}

// NewInterviewed creates a filter that removes candidates already invited to
// interview for the job.
func NewInterviewed() Filter {
	return &interviewedFilter{}
}

func (f *interviewedFilter) Name() string { return "interviewed" }

func (f *interviewedFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *interviewedFilter) IsEnabled() bool { return !f.disabled }

func (f *interviewedFilter) Validate(*Config) error { return nil }

func (f *interviewedFilter) Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if deps.Store == nil {
		return c, Step{}, fmt.Errorf("store is required")
	}

	seen := make(map[string]bool, initial)
	for _, item := range c.Items {
		has, err := deps.Store.HasInterviewForJob(ctx, deps.Job.ID, item.Application.CandidateID)
		if err != nil {
			return c, Step{}, fmt.Errorf("check interviews of %s: %w", item.Application.CandidateID, err)
		}
		seen[item.Application.ID] = has
	}

	excluded := c.Exclude(func(item *Candidate) bool { return seen[item.Application.ID] })
	if len(excluded) > 0 {
		deps.Logger.Info("excluding candidates already interviewed",
			zap.Strings("excluded_applications", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *interviewedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
