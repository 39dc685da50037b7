package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "billdesk_http_requests_in_flight")
	require.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := metricsRR.Body.String()
	require.Contains(t, body, `billdesk_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `billdesk_http_request_duration_seconds_bucket{route="/test"`)
}

func TestRegistererAcceptsComponentCollectors(t *testing.T) {
	metrics := NewMetrics()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "billdesk_test_total", Help: "test"})
	require.NoError(t, metrics.Registerer().Register(counter))
	counter.Inc()

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rr.Body.String(), "billdesk_test_total 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
