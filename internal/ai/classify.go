package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spigell/hireloop/internal/logger"
	"go.uber.org/zap"
)

const (
	OutcomeStrongYes = "strong_yes"
	OutcomeYes       = "yes"
	OutcomeNo        = "no"
	OutcomeStrongNo  = "strong_no"

	classifyMaxTokens = 512
)

type Classification struct {
	Outcome string  `json:"outcome"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
	Raw     string  `json:"-"`
}

const classifySystemPrompt = `You are a hiring assistant reviewing an interview transcript.
Respond with ONLY a JSON object, no markdown:
{"outcome": "strong_yes | yes | no | strong_no", "score": 0.0-1.0, "summary": "two or three sentences"}
Judge only on the transcript and the job context. Do not invent facts.`

type Classifier struct {
	chat      ChatCompleter
	logger    *zap.Logger
	maxLogLen int
}

func NewClassifier(chat ChatCompleter, log *zap.Logger, maxLogLen int) *Classifier {
	if maxLogLen <= 0 {
		maxLogLen = 200
	}
	return &Classifier{chat: chat, logger: logger.WithFields(log), maxLogLen: maxLogLen}
}

// Classify rates an interview transcript. jobContext is optional.
func (c *Classifier) Classify(ctx context.Context, transcript, jobContext string) (*Classification, error) {
	if c == nil || c.chat == nil {
		return nil, ErrProviderNotConfigured
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("%w: transcript is required", ErrInvalidRequest)
	}

	var b strings.Builder
	if jobContext = strings.TrimSpace(jobContext); jobContext != "" {
		b.WriteString("Job:\n")
		b.WriteString(jobContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)

	prompt := b.String()
	c.logger.Debug("classify transcript",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	resp, err := c.chat.Complete(ctx, ChatRequest{
		System:    classifySystemPrompt,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens: classifyMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("classify response",
		zap.String("response_preview", logger.TruncateForLog(resp.Content, c.maxLogLen)),
	)

	return ParseClassification(resp.Content)
}

func ParseClassification(raw string) (*Classification, error) {
	data, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	outcome := normalizeOutcome(CoerceString(data["outcome"]))
	if outcome == "" {
		return nil, fmt.Errorf("parse classification: unknown outcome %q", CoerceString(data["outcome"]))
	}

	return &Classification{
		Outcome: outcome,
		Score:   clamp01(CoerceFloat(data["score"])),
		Summary: CoerceString(data["summary"]),
		Raw:     raw,
	}, nil
}

func normalizeOutcome(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	switch v {
	case OutcomeStrongYes, OutcomeYes, OutcomeNo, OutcomeStrongNo:
		return v
	default:
		return ""
	}
}
