package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hireloop/internal/ai"
	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/store"
)

const (
	remoteIssuer = "https://auth.example.test"
	remoteSecret = "remote-secret"
	adminEmail   = "admin@example.test"
	password     = "correct horse battery"
)

type fakeChat struct {
	mu    sync.Mutex
	last  ai.ChatRequest
	reply string
	err   error
}

func (f *fakeChat) Complete(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ChatResponse{Provider: "fake", Model: "fake-1", Content: f.reply}, nil
}

func (f *fakeChat) lastRequest() ai.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeSpeaker struct{}

func (fakeSpeaker) Speak(_ context.Context, req ai.SpeechRequest) (*ai.Audio, error) {
	return &ai.Audio{ContentType: "audio/mpeg", Data: []byte("ID3" + req.Text)}, nil
}

type testEnv struct {
	t       *testing.T
	store   *store.Store
	server  *httptest.Server
	revoker *auth.MemoryRevoker
}

func newTestEnv(t *testing.T, providers Providers, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	issuer, err := auth.NewIssuer("local-secret", time.Hour)
	require.NoError(t, err)
	remote, err := auth.NewRemoteVerifier(remoteIssuer, remoteSecret)
	require.NoError(t, err)

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &store.User{Email: adminEmail, Name: "Admin", Role: store.RoleAdmin, PasswordHash: hash, Onboarded: true})
	require.NoError(t, err)

	revoker := auth.NewMemoryRevoker()
	srv, err := New(Deps{Store: st, Issuer: issuer, Remote: remote, Revoker: revoker, AI: providers}, opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{t: t, store: st, server: ts, revoker: revoker}
}

func (e *testEnv) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &http.Client{Jar: jar}
}

type call struct {
	method string
	path   string
	body   any
	bearer string
}

func (e *testEnv) do(c *http.Client, in call) (int, []byte) {
	e.t.Helper()

	var body io.Reader
	if in.body != nil {
		raw, err := json.Marshal(in.body)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(in.method, e.server.URL+in.path, body)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if in.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+in.bearer)
	}

	resp, err := c.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, out
}

func (e *testEnv) session(c *http.Client, bearer string) sessionView {
	e.t.Helper()
	status, body := e.do(c, call{method: http.MethodGet, path: "/api/auth/session", bearer: bearer})
	require.Equal(e.t, http.StatusOK, status, string(body))

	var view sessionView
	require.NoError(e.t, json.Unmarshal(body, &view))
	return view
}

func (e *testEnv) loginAdmin() *http.Client {
	c := e.client()
	status, body := e.do(c, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": adminEmail, "password": password}})
	require.Equal(e.t, http.StatusOK, status, string(body))
	return c
}

func (e *testEnv) registerCandidate(email string) *http.Client {
	c := e.client()
	status, body := e.do(c, call{method: http.MethodPost, path: "/api/auth/register",
		body: map[string]string{"email": email, "name": "Cand", "password": password}})
	require.Equal(e.t, http.StatusCreated, status, string(body))
	return c
}

func remoteToken(t *testing.T, subject, email string) string {
	t.Helper()
	token, err := auth.SignRemote(remoteIssuer, remoteSecret, subject, email, time.Hour)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestRegisterStartsCandidateSession(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})

	c := env.registerCandidate("new@example.test")
	view := env.session(c, "")

	require.True(t, view.Authenticated)
	assert.Equal(t, store.RoleCandidate, view.Identity.Role)
	assert.False(t, view.Identity.Onboarded)
	assert.Equal(t, "/onboarding", view.Home)

	status, _ := env.do(env.client(), call{method: http.MethodPost, path: "/api/auth/register",
		body: map[string]string{"email": "NEW@example.test", "password": password}})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(env.client(), call{method: http.MethodPost, path: "/api/auth/register",
		body: map[string]string{"email": "short@example.test", "password": "short"}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})

	for _, creds := range []map[string]string{
		{"email": adminEmail, "password": "wrong password"},
		{"email": "nobody@example.test", "password": password},
	} {
		status, body := env.do(env.client(), call{method: http.MethodPost, path: "/api/auth/login", body: creds})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, string(body))
	}
}

func TestRemoteSessionWinsOnFirstLoad(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})

	c := env.loginAdmin()
	require.Equal(t, adminEmail, env.session(c, "").Identity.Email)

	token := remoteToken(t, "sub-42", "remote@example.test")
	view := env.session(c, token)
	require.True(t, view.Authenticated)
	assert.Equal(t, "remote@example.test", view.Identity.Email)
	assert.Equal(t, store.RoleCandidate, view.Identity.Role)

	// The adopted identity now lives in the local cookie too.
	assert.Equal(t, "remote@example.test", env.session(c, "").Identity.Email)

	u, err := env.store.GetUserByRemoteSubject(context.Background(), "sub-42")
	require.NoError(t, err)
	assert.Equal(t, view.Identity.UserID, u.ID)
}

func TestRemoteSubjectLinksExistingAccountByEmail(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})

	view := env.session(env.client(), remoteToken(t, "admin-sub", adminEmail))
	require.True(t, view.Authenticated)
	assert.Equal(t, store.RoleAdmin, view.Identity.Role)

	u, err := env.store.GetUserByEmail(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.Equal(t, "admin-sub", u.RemoteSubject)
}

func TestLocalLogoutWinsOverRemoteSession(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})
	c := env.client()
	token := remoteToken(t, "sub-7", "lingering@example.test")

	require.True(t, env.session(c, token).Authenticated)

	status, _ := env.do(c, call{method: http.MethodPost, path: "/api/auth/logout", bearer: token})
	require.Equal(t, http.StatusNoContent, status)

	// The provider still hands out the same token.
	assert.False(t, env.session(c, token).Authenticated)
	assert.False(t, env.session(env.client(), token).Authenticated)

	// Signing in locally lifts the mark.
	u, err := env.store.GetUserByRemoteSubject(context.Background(), "sub-7")
	require.NoError(t, err)
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = env.store.PatchUser(context.Background(), u.ID, store.Patch{"password_hash": hash})
	require.NoError(t, err)

	status, _ = env.do(c, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": "lingering@example.test", "password": password}})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.session(env.client(), remoteToken(t, "sub-7", "lingering@example.test")).Authenticated)
}

func TestRemoteSignInAfterLogoutIsAdopted(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})
	c := env.client()
	token := remoteToken(t, "sso-1", "sso@example.test")

	// Provisioned through managed auth only, so there is no password to fall back on.
	require.True(t, env.session(c, token).Authenticated)
	status, _ := env.do(c, call{method: http.MethodPost, path: "/api/auth/logout", bearer: token})
	require.Equal(t, http.StatusNoContent, status)

	// Token issue times have second precision.
	now := time.Now()
	time.Sleep(now.Truncate(time.Second).Add(time.Second).Sub(now) + 10*time.Millisecond)

	fresh := env.client()
	view := env.session(fresh, remoteToken(t, "sso-1", "sso@example.test"))
	require.True(t, view.Authenticated)
	require.NotNil(t, view.Identity)
	assert.Equal(t, "sso@example.test", view.Identity.Email)

	// The cookie minted from the new sign-in works on its own.
	assert.True(t, env.session(fresh, "").Authenticated)

	// The token that was logged out stays dead.
	assert.False(t, env.session(env.client(), token).Authenticated)
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})
	candidate := env.registerCandidate("cand@example.test")

	status, _ := env.do(env.client(), call{method: http.MethodGet, path: "/api/dashboard/cards"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(candidate, call{method: http.MethodGet, path: "/api/dashboard/cards"})
	assert.Equal(t, http.StatusForbidden, status)

	admin := env.loginAdmin()
	status, body := env.do(admin, call{method: http.MethodGet, path: "/api/dashboard/cards"})
	require.Equal(t, http.StatusOK, status)
	cards := decode[map[string][]map[string]string](t, body)["cards"]
	assert.Len(t, cards, 11)

	status, _ = env.do(admin, call{method: http.MethodGet, path: "/api/profile"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestNavigationEndpoint(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{})

	status, body := env.do(env.client(), call{method: http.MethodGet, path: "/api/navigation?path=/dashboard/jobs"})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"allow":false,"redirect":"/login"}`, string(body))

	candidate := env.registerCandidate("nav@example.test")
	_, body = env.do(candidate, call{method: http.MethodGet, path: "/api/navigation?path=/portal"})
	assert.JSONEq(t, `{"allow":false,"redirect":"/onboarding"}`, string(body))

	status, body = env.do(candidate, call{method: http.MethodPost, path: "/api/profile/onboarding",
		body: map[string]any{"headline": "Go developer", "experience_years": 4}})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "/portal", decode[onboardingView](t, body).Home)

	_, body = env.do(candidate, call{method: http.MethodGet, path: "/api/navigation?path=/portal"})
	assert.JSONEq(t, `{"allow":true}`, string(body))

	status, _ = env.do(candidate, call{method: http.MethodGet, path: "/api/navigation"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHiringFlow(t *testing.T) {
	chat := &fakeChat{reply: "```json\n{\"outcome\": \"yes\", \"score\": \"0.8\", \"summary\": \"solid\"}\n```"}
	env := newTestEnv(t, Providers{Chat: chat, ChatName: "fake"}, Options{})
	admin := env.loginAdmin()
	candidate := env.registerCandidate("flow@example.test")

	status, body := env.do(admin, call{method: http.MethodPost, path: "/api/jobs",
		body: map[string]any{"title": "Backend engineer", "status": "open", "requirements": []string{"Go"}}})
	require.Equal(t, http.StatusCreated, status, string(body))
	job := decode[store.Job](t, body)

	status, body = env.do(candidate, call{method: http.MethodGet, path: "/api/jobs/open"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[map[string][]store.Job](t, body)["jobs"], 1)

	status, body = env.do(candidate, call{method: http.MethodPost, path: "/api/jobs/" + job.ID + "/apply"})
	require.Equal(t, http.StatusCreated, status, string(body))
	app := decode[store.Application](t, body)

	status, _ = env.do(candidate, call{method: http.MethodPost, path: "/api/jobs/" + job.ID + "/apply"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = env.do(admin, call{method: http.MethodPost, path: "/api/jobs/" + job.ID + "/shortlist"})
	require.Equal(t, http.StatusOK, status, string(body))
	shortlist := decode[shortlistView](t, body)
	assert.Len(t, shortlist.Candidates, 1)
	assert.Len(t, shortlist.Steps, 3)

	status, body = env.do(admin, call{method: http.MethodPost, path: "/api/applications/" + app.ID + "/interviews"})
	require.Equal(t, http.StatusCreated, status, string(body))
	iv := decode[store.Interview](t, body)

	other := env.registerCandidate("other@example.test")
	status, _ = env.do(other, call{method: http.MethodPost, path: "/api/interviews/" + iv.AccessCode + "/start"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(candidate, call{method: http.MethodPost, path: "/api/interviews/" + iv.AccessCode + "/start"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, store.InterviewInProgress, decode[interviewView](t, body).Interview.Status)

	status, body = env.do(candidate, call{method: http.MethodPost, path: "/api/interviews/" + iv.AccessCode + "/complete",
		body: map[string]string{"transcript": "Q: tell me about Go. A: channels and interfaces."}})
	require.Equal(t, http.StatusOK, status, string(body))
	done := decode[store.Interview](t, body)
	assert.Equal(t, store.InterviewCompleted, done.Status)
	assert.Equal(t, ai.OutcomeYes, done.Outcome)
	require.NotNil(t, done.Score)
	assert.InDelta(t, 0.8, *done.Score, 1e-9)
	assert.Contains(t, chat.lastRequest().Messages[0].Content, "Backend engineer")

	status, body = env.do(admin, call{method: http.MethodPatch, path: "/api/applications/" + app.ID,
		body: map[string]string{"stage": "hired"}})
	require.Equal(t, http.StatusOK, status, string(body))

	status, _ = env.do(admin, call{method: http.MethodPatch, path: "/api/applications/" + app.ID,
		body: map[string]string{"stage": "offer"}})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(admin, call{method: http.MethodPatch, path: "/api/applications/" + app.ID,
		body: map[string]string{"colour": "blue"}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAIChatUsesDefaultKnowledge(t *testing.T) {
	chat := &fakeChat{reply: "Hello, tell me about yourself."}
	env := newTestEnv(t, Providers{Chat: chat, ChatName: "fake"}, Options{})
	admin := env.loginAdmin()

	status, body := env.do(admin, call{method: http.MethodPut, path: "/api/knowledge-base",
		body: map[string]string{"title": "Interviewer", "content": "You interview backend engineers."}})
	require.Equal(t, http.StatusOK, status, string(body))
	kb := decode[store.Knowledge](t, body)

	status, _ = env.do(admin, call{method: http.MethodPost, path: "/api/knowledge-base/" + kb.ID + "/default"})
	require.Equal(t, http.StatusOK, status)

	candidate := env.registerCandidate("chat@example.test")
	status, body = env.do(candidate, call{method: http.MethodPost, path: "/api/ai/chat",
		body: map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}}})
	require.Equal(t, http.StatusOK, status, string(body))

	assert.Equal(t, "Hello, tell me about yourself.", decode[ai.ChatResponse](t, body).Content)
	assert.Equal(t, "You interview backend engineers.", chat.lastRequest().System)

	status, _ = env.do(candidate, call{method: http.MethodPost, path: "/api/ai/chat",
		body: map[string]any{"messages": []map[string]string{{"role": "system", "content": "hi"}}}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAIProxyErrors(t *testing.T) {
	chat := &fakeChat{err: &ai.ProviderError{Provider: "fake", Status: 500, Body: "secret upstream detail"}}
	env := newTestEnv(t, Providers{Chat: chat, ChatName: "fake"}, Options{})
	c := env.registerCandidate("err@example.test")

	status, body := env.do(c, call{method: http.MethodPost, path: "/api/ai/chat",
		body: map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}}})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.JSONEq(t, `{"error":"ai provider request failed"}`, string(body))

	status, _ = env.do(c, call{method: http.MethodPost, path: "/api/ai/tts", body: map[string]string{"text": "hi"}})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = env.do(c, call{method: http.MethodPost, path: "/api/ai/avatar/session"})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = env.do(env.client(), call{method: http.MethodPost, path: "/api/ai/tts", body: map[string]string{"text": "hi"}})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAISpeechReturnsAudio(t *testing.T) {
	env := newTestEnv(t, Providers{Speech: fakeSpeaker{}, SpeechName: "fake"}, Options{})
	c := env.registerCandidate("tts@example.test")

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/ai/tts", bytes.NewBufferString(`{"text":"hello"}`))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ID3hello", string(data))
}

func TestAIRoutesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, Providers{Speech: fakeSpeaker{}, SpeechName: "fake"}, Options{RateLimit: 0.001, Burst: 2})
	c := env.registerCandidate("busy@example.test")

	var statuses []int
	for i := 0; i < 3; i++ {
		status, _ := env.do(c, call{method: http.MethodPost, path: "/api/ai/tts", body: map[string]string{"text": "hi"}})
		statuses = append(statuses, status)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// Another user has its own bucket.
	other := env.registerCandidate("calm@example.test")
	status, _ := env.do(other, call{method: http.MethodPost, path: "/api/ai/tts", body: map[string]string{"text": "hi"}})
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthzAndCORS(t *testing.T) {
	env := newTestEnv(t, Providers{}, Options{CORSOrigins: []string{"https://app.example.test"}})

	status, body := env.do(env.client(), call{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.test", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
