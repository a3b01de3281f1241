package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesJobAndRuntimeMetrics(t *testing.T) {
	metrics := NewMetrics()
	require.NoError(t, metrics.Jobs().Track("orders:sweep_expired").End(nil))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rentflow_jobs_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, "/orders/{id}", "418")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.latency))
	assert.Zero(t, testutil.ToFloat64(metrics.inFlight))
}

func TestRecordSettlementOutcome(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordSettlement("conflict")
	metrics.RecordSettlement("conflict")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.settlements.WithLabelValues("conflict")))

	var nilMetrics *Metrics
	nilMetrics.RecordSettlement("applied")
	assert.NotNil(t, nilMetrics.Handler())
}
