package screening

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

type minExperienceFilter struct {
	minimum int
}

// NewMinExperience creates a filter that removes profiles below the job's
// minimum years of experience.
func NewMinExperience() Filter {
	return &minExperienceFilter{}
}

func (f *minExperienceFilter) Name() string { return "min_experience" }

func (f *minExperienceFilter) Disable(string) {}

func (f *minExperienceFilter) IsEnabled() bool { return true }

func (f *minExperienceFilter) Validate(*Config) error { return nil }

func (f *minExperienceFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	f.minimum = deps.Job.MinExperienceYears
	if f.minimum <= 0 {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(item *Candidate) bool {
		return item.Profile == nil || item.Profile.ExperienceYears < f.minimum
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding candidates below minimum experience",
			zap.Int("minimum_years", f.minimum),
			zap.Strings("excluded_applications", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *minExperienceFilter) Status() Status {
	details := map[string]string{}
	if f.minimum > 0 {
		details["minimum_years"] = strconv.Itoa(f.minimum)
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
