package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/internal/interfaces/http/handlers"
)

func newRouterForTest(t *testing.T) (http.Handler, prometheus.MetricsCollector) {
	t.Helper()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace: "noteclarity",
		Subsystem: "httptest",
	}, logging.NewNopLogger())
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler("test"),
		Logger:        logging.NewNopLogger(),
		Metrics:       prometheus.NewAppMetrics(collector),
		Collector:     collector,
		Mode:          gin.TestMode,
	})
	return router, collector
}

func TestRouterHealthEndpoints(t *testing.T) {
	router, _ := newRouterForTest(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newRouterForTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newRouterForTest(t)

	// Generate one request so the counter exists before scraping.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "noteclarity_httptest_http_requests_total")
	assert.Contains(t, body, `path="unmatched"`)
}

func TestRouterSetsRequestID(t *testing.T) {
	router, _ := newRouterForTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
