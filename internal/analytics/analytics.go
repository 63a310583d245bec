// Package analytics computes the admin dashboard cards.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/hireloop/internal/store"
)

const recentWindow = 7 * 24 * time.Hour

type Card struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Value string `json:"value"`
	Hint  string `json:"hint,omitempty"`
}

type Store interface {
	CountJobsByStatus(ctx context.Context) (map[string]int, error)
	CountCandidates(ctx context.Context) (int, error)
	CountApplicationsByStage(ctx context.Context) (map[string]int, error)
	CountInterviewsCompletedSince(ctx context.Context, since time.Time) (int, error)
	AverageFitScore(ctx context.Context) (float64, bool, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func New(st Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Cards returns the summary cards followed by one card per pipeline stage.
func (s *Service) Cards(ctx context.Context) ([]Card, error) {
	jobs, err := s.store.CountJobsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	candidates, err := s.store.CountCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	stages, err := s.store.CountApplicationsByStage(ctx)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	completed, err := s.store.CountInterviewsCompletedSince(ctx, s.now().Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("count interviews: %w", err)
	}
	avg, scored, err := s.store.AverageFitScore(ctx)
	if err != nil {
		return nil, fmt.Errorf("average fit: %w", err)
	}

	inPipeline := 0
	for stage, n := range stages {
		if !store.TerminalStage(stage) {
			inPipeline += n
		}
	}

	fit := Card{Key: "average_fit", Title: "Average fit score", Value: "n/a", Hint: "no scored applications yet"}
	if scored {
		fit.Value = strconv.Itoa(int(avg*100+0.5)) + "%"
		fit.Hint = "across AI-screened applications"
	}

	cards := []Card{
		{Key: "open_jobs", Title: "Open jobs", Value: strconv.Itoa(jobs[store.JobOpen]),
			Hint: fmt.Sprintf("%d drafts", jobs[store.JobDraft])},
		{Key: "candidates", Title: "Candidates", Value: strconv.Itoa(candidates)},
		{Key: "in_pipeline", Title: "In pipeline", Value: strconv.Itoa(inPipeline),
			Hint: fmt.Sprintf("%d hired", stages[store.StageHired])},
		{Key: "interviews_completed", Title: "Interviews this week", Value: strconv.Itoa(completed),
			Hint: "completed in the last 7 days"},
		fit,
	}

	for _, stage := range store.Stages {
		cards = append(cards, Card{
			Key:   "stage_" + stage,
			Title: stageTitle(stage),
			Value: strconv.Itoa(stages[stage]),
		})
	}

	return cards, nil
}

func stageTitle(stage string) string {
	if stage == "" {
		return stage
	}
	return strings.ToUpper(stage[:1]) + stage[1:]
}
