package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/ai/anthropic"
	"github.com/spigell/hireloop/internal/ai/elevenlabs"
	"github.com/spigell/hireloop/internal/ai/gemini"
	"github.com/spigell/hireloop/internal/ai/openai"
	"github.com/spigell/hireloop/internal/ai/simli"
	"github.com/spigell/hireloop/internal/config"
	"github.com/spigell/hireloop/internal/httpapi"
	"github.com/spigell/hireloop/internal/secrets"
)

// newProviders builds every AI client the configuration enables. Disabled
// providers stay nil and their routes answer 503.
func newProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (httpapi.Providers, error) {
	var p httpapi.Providers
	timeout := cfg.AI.Timeout

	var generator gemini.ContentGenerator
	if provider := cfg.AI.Chat.Provider; provider != "" {
		creds := cfg.ChatProvider()
		apiKey, err := creds.Key(provider)
		if errors.Is(err, secrets.ErrNotConfigured) {
			return p, fmt.Errorf("%w (set ai.%s.api-key-file or HIRELOOP_AI_%s_API_KEY)", err, provider, strings.ToUpper(provider))
		}
		if err != nil {
			return p, err
		}

		switch provider {
		case anthropic.Provider:
			p.Chat, err = anthropic.New(apiKey, creds.BaseURL, creds.Model, timeout, logger)
		case openai.Provider:
			p.Chat, err = openai.New(openai.Config{APIKey: apiKey, BaseURL: creds.BaseURL, Model: creds.Model, Timeout: timeout}, logger)
		case openai.GroqProvider:
			p.Chat, err = openai.NewGroq(apiKey, creds.BaseURL, creds.Model, timeout, logger)
		case gemini.Provider:
			var g *gemini.Generator
			g, err = gemini.NewGenerator(ctx, apiKey, creds.Model, cfg.AI.Screening.MaxRetries, logger)
			if err == nil {
				p.Chat, generator = g, g
			}
		default:
			err = fmt.Errorf("unsupported chat provider: %s", provider)
		}
		if err != nil {
			return p, fmt.Errorf("creating %s chat client: %w", provider, err)
		}
		p.ChatName = provider

		if generator == nil {
			generator = gemini.FromChat(p.Chat)
		}
	}

	if generator != nil {
		minScore := cfg.AI.Screening.MinimumFitScore
		matcherLogger := logger.With(
			zap.String("provider", p.ChatName),
			zap.Float64("minimum_fit_score", minScore),
		)

		matcher := gemini.NewMatcher(generator, minScore, cfg.AI.MaxLogLength, matcherLogger)
		prompt := cfg.AI.Screening.Prompt
		matcher.SetPromptOverrides(gemini.PromptOverrides{
			ExtraCriteria:     prompt.ExtraCriteria,
			DealBreakers:      prompt.DealBreakers,
			CustomKeywords:    prompt.CustomKeywords,
			Tone:              prompt.Tone,
			RegionConstraints: prompt.RegionConstraints,
			UserInstructions:  prompt.Instructions,
		})
		p.Matcher = matcher
	}

	speech, err := newSpeaker(cfg, logger)
	if err != nil {
		return p, err
	}
	if speech != nil {
		p.Speech, p.SpeechName = speech, cfg.AI.TTS.Provider
	}

	if cfg.AI.Avatar.Configured() {
		apiKey, err := cfg.AI.Avatar.Key()
		if err != nil {
			return p, err
		}
		avatar, err := simli.New(apiKey, cfg.AI.Avatar.BaseURL, cfg.AI.Avatar.FaceID, timeout, logger)
		if err != nil {
			return p, fmt.Errorf("creating simli client: %w", err)
		}
		p.Avatar = avatar
	}

	logger.Info("ai providers configured",
		zap.String("chat", p.ChatName),
		zap.String("tts", p.SpeechName),
		zap.Bool("avatar", p.Avatar != nil),
		zap.Bool("matcher", p.Matcher != nil),
	)

	return p, nil
}

func newSpeaker(cfg *config.Config, logger *zap.Logger) (ai.Speaker, error) {
	tts := cfg.AI.TTS
	switch tts.Provider {
	case "":
		return nil, nil
	case elevenlabs.Provider:
		creds := cfg.AI.ElevenLabs
		apiKey, err := creds.Key(tts.Provider)
		if err != nil {
			return nil, err
		}
		model := tts.Model
		if model == "" {
			model = creds.Model
		}
		c, err := elevenlabs.New(apiKey, creds.BaseURL, model, tts.Voice, cfg.AI.Timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("creating elevenlabs client: %w", err)
		}
		return c, nil
	case openai.Provider:
		creds := cfg.AI.OpenAI
		apiKey, err := creds.Key(tts.Provider)
		if err != nil {
			return nil, err
		}
		c, err := openai.New(openai.Config{
			APIKey:      apiKey,
			BaseURL:     creds.BaseURL,
			Model:       creds.Model,
			SpeechModel: tts.Model,
			Voice:       tts.Voice,
			Timeout:     cfg.AI.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating openai speech client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported tts provider: %s", tts.Provider)
	}
}
