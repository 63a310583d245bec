package screening

import (
	"context"
	"fmt"
	"maps"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/store"
)

type aiFitFilter struct {
	disabled    bool
	reason      string
	minScore    float64
	assessments map[string]*ai.FitAssessment
}

// NewAIFit creates the AI-based screening step.
func NewAIFit() Filter {
	return &aiFitFilter{}
}

func (f *aiFitFilter) Name() string { return "ai_fit" }

func (f *aiFitFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *aiFitFilter) IsEnabled() bool { return !f.disabled }

func (f *aiFitFilter) Validate(cfg *Config) error {
	f.minScore = 0
	if cfg != nil {
		f.minScore = cfg.MinimumFitScore
	}
	if f.minScore < 0 || f.minScore > 1 {
		return fmt.Errorf("minimum fit score must be within [0, 1], got %v", f.minScore)
	}
	return nil
}

func (f *aiFitFilter) Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	f.assessments = make(map[string]*ai.FitAssessment)

	if deps.Matcher == nil {
		deps.Logger.Info("ai matcher is not configured; skipping ai_fit filter")
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}
	if deps.Store == nil {
		return c, Step{}, fmt.Errorf("store is required for AI evaluation")
	}

	approved := make([]*Candidate, 0, initial)
	for _, item := range c.Items {
		appID := item.Application.ID

		assessment, err := deps.Matcher.Evaluate(ctx, item.Profile, deps.Job)
		if err != nil {
			if ctx.Err() != nil {
				return c, Step{}, ctx.Err()
			}
			deps.Logger.Warn("AI evaluation failed",
				zap.String("application_id", appID),
				zap.Error(err),
			)
			item.AI = &Assessment{Error: err.Error()}
			approved = append(approved, item)
			continue
		}

		item.AI = &Assessment{
			Fit:     assessment.Fit,
			Score:   assessment.Score,
			Reason:  assessment.Reason,
			Message: assessment.Message,
		}
		f.assessments[appID] = assessment

		updated, err := deps.Store.PatchApplication(ctx, appID, store.Patch{
			"fit_score":  clampScore(assessment.Score),
			"fit_reason": assessment.Reason,
		})
		if err != nil {
			return c, Step{}, fmt.Errorf("save fit of %s: %w", appID, err)
		}
		item.Application = updated

		if !assessment.Fit || assessment.Score < f.minScore {
			deps.Logger.Info("candidate rejected by AI provider",
				zap.String("application_id", appID),
				zap.Float64("ai_score", assessment.Score),
				zap.String("reason", assessment.Reason),
			)
			continue
		}

		deps.Logger.Info("candidate approved by AI",
			zap.String("application_id", appID),
			zap.Float64("ai_score", assessment.Score),
		)
		approved = append(approved, item)
	}

	c.Items = approved

	deps.Logger.Info("AI screening completed",
		zap.Int("initial_candidates", initial),
		zap.Int("approved_candidates", len(approved)),
	)

	return c, Step{Initial: initial, Dropped: initial - len(approved), Left: len(approved)}, nil
}

func (f *aiFitFilter) Assessments() map[string]*ai.FitAssessment {
	if f.assessments == nil {
		return map[string]*ai.FitAssessment{}
	}
	return maps.Clone(f.assessments)
}

func (f *aiFitFilter) Status() Status {
	details := map[string]string{
		"minimum_fit_score": fmt.Sprintf("%.2f", f.minScore),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
