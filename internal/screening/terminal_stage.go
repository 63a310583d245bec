package screening

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/store"
)

type terminalStageFilter struct{}

// NewTerminalStage creates a filter that removes hired and rejected applications.
func NewTerminalStage() Filter {
	return &terminalStageFilter{}
}

func (f *terminalStageFilter) Name() string { return "terminal_stage" }

func (f *terminalStageFilter) Disable(string) {}

func (f *terminalStageFilter) IsEnabled() bool { return true }

func (f *terminalStageFilter) Validate(*Config) error { return nil }

func (f *terminalStageFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	excluded := c.Exclude(func(item *Candidate) bool {
		return store.TerminalStage(item.Application.Stage)
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding closed applications",
			zap.Strings("excluded_applications", excluded),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}
