package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/logger"
	"github.com/spigell/hireloop/internal/store"
	"go.uber.org/zap"
)

// ContentGenerator produces a reply to one message under a system instruction.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// FromChat lets any chat provider drive the matcher.
func FromChat(chat ai.ChatCompleter) ContentGenerator {
	return chatGenerator{chat: chat}
}

type chatGenerator struct {
	chat ai.ChatCompleter
}

func (c chatGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	resp, err := c.chat.Complete(ctx, ai.ChatRequest{
		System:   system,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: message}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// PromptOverrides are recruiter preferences spliced into the prompt.
type PromptOverrides struct {
	ExtraCriteria     string
	DealBreakers      string
	CustomKeywords    string
	Tone              string
	RegionConstraints string
	UserInstructions  string
}

type Matcher struct {
	generator ContentGenerator
	minScore  float64
	logger    *zap.Logger
	maxLogLen int
	overrides PromptOverrides
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 500
	defaultTone             = "Friendly"
	matcherSystem           = "You screen job candidates and answer with a single JSON object."
)

func NewMatcher(generator ContentGenerator, minScore float64, maxLogLength int, logger *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		minScore:  minScore,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (m *Matcher) SetPromptOverrides(o PromptOverrides) {
	m.overrides = o
}

type profilePayload struct {
	Headline        string   `json:"headline,omitempty"`
	Location        string   `json:"location,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	ExperienceYears int      `json:"experience_years"`
	Resume          string   `json:"resume,omitempty"`
}

type jobPayload struct {
	Title              string   `json:"title"`
	Department         string   `json:"department,omitempty"`
	Location           string   `json:"location,omitempty"`
	EmploymentType     string   `json:"employment_type,omitempty"`
	Description        string   `json:"description,omitempty"`
	Requirements       []string `json:"requirements,omitempty"`
	MinExperienceYears int      `json:"min_experience_years,omitempty"`
}

func (m *Matcher) Evaluate(ctx context.Context, profile *store.Profile, job *store.Job) (*ai.FitAssessment, error) {
	if profile == nil {
		return nil, fmt.Errorf("candidate profile is required")
	}
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}

	profileJSON, err := json.MarshalIndent(profilePayload{
		Headline:        profile.Headline,
		Location:        profile.Location,
		Summary:         profile.Summary,
		Skills:          profile.Skills,
		ExperienceYears: profile.ExperienceYears,
		Resume:          profile.ResumeText,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}

	jobJSON, err := json.MarshalIndent(jobPayload{
		Title:              job.Title,
		Department:         job.Department,
		Location:           job.Location,
		EmploymentType:     job.EmploymentType,
		Description:        job.Description,
		Requirements:       job.Requirements,
		MinExperienceYears: job.MinExperienceYears,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(jobJSON), m.overrides)

	m.logger.Debug("fit evaluation request",
		zap.String("job_id", job.ID),
		zap.String("candidate_id", profile.UserID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, matcherSystem, prompt)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("fit evaluation response",
		zap.String("job_id", job.ID),
		zap.String("candidate_id", profile.UserID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if m.minScore > 0 && !math.IsNaN(assessment.Score) && assessment.Score < m.minScore {
		m.logger.Debug("set fit to false by score threshold",
			zap.String("job_id", job.ID),
			zap.Float64("score", assessment.Score),
			zap.Float64("threshold", m.minScore),
		)
		assessment.Fit = false
	}

	assessment.Raw = raw
	return assessment, nil
}

func buildPrompt(profileJSON, jobJSON string, o PromptOverrides) string {
	replacer := strings.NewReplacer(
		"{{EXTRA_CRITERIA}}", orDefault(sanitizeLine(o.ExtraCriteria), "none"),
		"{{DEAL_BREAKERS}}", orDefault(sanitizeLine(o.DealBreakers), "none"),
		"{{CUSTOM_KEYWORDS}}", orDefault(sanitizeLine(o.CustomKeywords), "none"),
		"{{TONE}}", orDefault(sanitizeLine(o.Tone), defaultTone),
		"{{REGION_CONSTRAINTS}}", orDefault(sanitizeLine(o.RegionConstraints), "none"),
		"{{USER_INSTRUCTIONS}}", instructionsBlock(o.UserInstructions),
		"{{PROFILE_JSON}}", profileJSON,
		"{{JOB_JSON}}", jobJSON,
	)
	return replacer.Replace(promptTemplate)
}

// Square brackets delimit prompt sections, so user text may not contain them.
var bracketReplacer = strings.NewReplacer("[", "(", "]", ")")

func sanitizeLine(s string) string {
	return strings.Join(strings.Fields(bracketReplacer.Replace(s)), " ")
}

func instructionsBlock(s string) string {
	s = strings.TrimSpace(bracketReplacer.Replace(s))
	if runes := []rune(s); len(runes) > maxUserInstructionRunes {
		s = string(runes[:maxUserInstructionRunes])
	}

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, "  - "+line)
		}
	}
	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseResponse(raw string) (*ai.FitAssessment, error) {
	assessment, err := ai.ParseFitAssessment(raw)
	if err != nil {
		return nil, fmt.Errorf("parse fit response: %w", err)
	}
	return assessment, nil
}
