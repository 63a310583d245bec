package httpapi

import (
	"context"
	"time"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/metrics"
	"github.com/spigell/hireloop/internal/store"
)

// Providers are the configured AI clients and the names they report in metrics.
// Any of them may be nil.
type Providers struct {
	Chat       ai.ChatCompleter
	ChatName   string
	Speech     ai.Speaker
	SpeechName string
	Avatar     ai.AvatarStarter
	Matcher    ai.Matcher
}

type meteredChat struct {
	name string
	next ai.ChatCompleter
}

func (m meteredChat) Complete(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	start := time.Now()
	resp, err := m.next.Complete(ctx, req)
	metrics.RecordAICall(m.name, "chat", time.Since(start), err)
	return resp, err
}

type meteredSpeaker struct {
	name string
	next ai.Speaker
}

func (m meteredSpeaker) Speak(ctx context.Context, req ai.SpeechRequest) (*ai.Audio, error) {
	start := time.Now()
	audio, err := m.next.Speak(ctx, req)
	metrics.RecordAICall(m.name, "tts", time.Since(start), err)
	return audio, err
}

type meteredAvatar struct {
	next ai.AvatarStarter
}

func (m meteredAvatar) StartSession(ctx context.Context) (*ai.AvatarSession, error) {
	start := time.Now()
	sess, err := m.next.StartSession(ctx)
	metrics.RecordAICall("simli", "avatar", time.Since(start), err)
	return sess, err
}

type meteredMatcher struct {
	next ai.Matcher
}

func (m meteredMatcher) Evaluate(ctx context.Context, profile *store.Profile, job *store.Job) (*ai.FitAssessment, error) {
	start := time.Now()
	fit, err := m.next.Evaluate(ctx, profile, job)
	metrics.RecordAICall("matcher", "screening", time.Since(start), err)
	return fit, err
}

func (p Providers) metered() Providers {
	if p.Chat != nil {
		p.Chat = meteredChat{name: p.ChatName, next: p.Chat}
	}
	if p.Speech != nil {
		p.Speech = meteredSpeaker{name: p.SpeechName, next: p.Speech}
	}
	if p.Avatar != nil {
		p.Avatar = meteredAvatar{next: p.Avatar}
	}
	if p.Matcher != nil {
		p.Matcher = meteredMatcher{next: p.Matcher}
	}
	return p
}
