package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/sites/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/sites/{id}", "418"))

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sites/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	after := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/sites/{id}", "418"))
	assert.Equal(t, 3.0, after-before)
}

func TestMiddlewareUnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {})

	before := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "unmatched", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	after := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "unmatched", "404"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, after-before)
}

func TestObserveGeneration(t *testing.T) {
	before := testutil.ToFloat64(GenerationsTotal.WithLabelValues(KindAbout, OutcomeFlagged))
	ObserveGeneration(KindAbout, OutcomeFlagged, time.Now().Add(-time.Second))
	after := testutil.ToFloat64(GenerationsTotal.WithLabelValues(KindAbout, OutcomeFlagged))
	assert.Equal(t, 1.0, after-before)
}

func TestHandlerExposesNamespace(t *testing.T) {
	GenerationsTotal.WithLabelValues(KindWebsite, OutcomeOK).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront_ai_generations_total"))
}
