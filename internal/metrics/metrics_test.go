package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hireloop/internal/ai"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/jobs/{id}", "418"))
	assert.Equal(t, float64(2), got)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hireloop_http_requests_total"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(ai.ErrInvalidRequest))
	assert.Equal(t, "provider_error", Outcome(&ai.ProviderError{Provider: "openai", Status: 500}))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestRecordAICall(t *testing.T) {
	RecordAICall("simli", "avatar", 10*time.Millisecond, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(aiCalls.WithLabelValues("simli", "avatar", "ok")))
}
