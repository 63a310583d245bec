// Package httpapi is the JSON API behind the admin dashboard and the candidate
// portal, including the AI proxy routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/analytics"
	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/metrics"
	"github.com/spigell/hireloop/internal/screening"
	"github.com/spigell/hireloop/internal/store"
)

const (
	DefaultCookieName   = "hireloop"
	DefaultInterviewTTL = 72 * time.Hour
)

type Options struct {
	CookieName   string
	SecureCookie bool
	CORSOrigins  []string
	// RateLimit is requests per second per user on the AI routes. Zero disables it.
	RateLimit    float64
	Burst        int
	InterviewTTL time.Duration
	MaxLogLength int
	Screening    screening.Config
}

type Deps struct {
	Store   *store.Store
	Issuer  *auth.Issuer
	Remote  *auth.RemoteVerifier
	Revoker auth.Revoker
	AI      Providers
	Logger  *zap.Logger
}

type Server struct {
	store      *store.Store
	issuer     *auth.Issuer
	remote     *auth.RemoteVerifier
	revoker    auth.Revoker
	analytics  *analytics.Service
	ai         Providers
	classifier *ai.Classifier
	limiter    *rateLimiter
	logger     *zap.Logger
	opts       Options
	router     chi.Router
}

func New(deps Deps, opts Options) (*Server, error) {
	if deps.Store == nil || deps.Issuer == nil {
		return nil, errors.New("store and token issuer are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Revoker == nil {
		deps.Revoker = auth.NewMemoryRevoker()
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.InterviewTTL <= 0 {
		opts.InterviewTTL = DefaultInterviewTTL
	}

	providers := deps.AI.metered()

	s := &Server{
		store:     deps.Store,
		issuer:    deps.Issuer,
		remote:    deps.Remote,
		revoker:   deps.Revoker,
		analytics: analytics.New(deps.Store),
		ai:        providers,
		logger:    deps.Logger,
		opts:      opts,
	}
	if providers.Chat != nil {
		s.classifier = ai.NewClassifier(providers.Chat, deps.Logger, opts.MaxLogLength)
	}
	if opts.RateLimit > 0 {
		s.limiter = newRateLimiter(opts.RateLimit, opts.Burst)
	}

	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors(s.opts.CORSOrigins))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(s.authenticate)

		api.Post("/auth/register", s.register)
		api.Post("/auth/login", s.login)
		api.Post("/auth/logout", s.logout)
		api.Get("/auth/session", s.session)
		api.Get("/navigation", s.navigate)

		api.Group(func(admin chi.Router) {
			admin.Use(s.requireRole(store.RoleAdmin))

			admin.Get("/dashboard/cards", s.dashboardCards)
			admin.Get("/jobs", s.listJobs)
			admin.Post("/jobs", s.createJob)
			admin.Get("/jobs/{id}", s.getJob)
			admin.Patch("/jobs/{id}", s.patchJob)
			admin.Get("/jobs/{id}/candidates", s.jobCandidates)
			admin.Post("/jobs/{id}/shortlist", s.shortlist)
			admin.Patch("/applications/{id}", s.patchApplication)
			admin.Post("/applications/{id}/interviews", s.inviteToInterview)
			admin.Get("/knowledge-base", s.getKnowledge)
			admin.Put("/knowledge-base", s.putKnowledge)
			admin.Post("/knowledge-base/{id}/default", s.setDefaultKnowledge)
		})

		api.Group(func(candidate chi.Router) {
			candidate.Use(s.requireRole(store.RoleCandidate))

			candidate.Get("/profile", s.getProfile)
			candidate.Patch("/profile", s.patchProfile)
			candidate.Post("/profile/onboarding", s.completeOnboarding)
			candidate.Get("/jobs/open", s.openJobs)
			candidate.Post("/jobs/{id}/apply", s.applyToJob)
			candidate.Get("/interviews", s.myInterviews)
			candidate.Post("/interviews/{code}/start", s.startInterview)
			candidate.Post("/interviews/{code}/complete", s.completeInterview)
		})

		api.Route("/ai", func(proxy chi.Router) {
			proxy.Use(s.requireAuth)
			proxy.Use(s.rateLimit)

			proxy.Post("/chat", s.aiChat)
			proxy.Post("/classify", s.aiClassify)
			proxy.Post("/tts", s.aiSpeech)
			proxy.Post("/avatar/session", s.aiAvatarSession)
		})
	})

	s.router = r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
