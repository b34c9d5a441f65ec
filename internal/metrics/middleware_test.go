package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByStatus(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/runs/{run_id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "run_id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("{}")) //nolint:errcheck // recorder never fails
	})
	r.Post("/v1/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	cases := []struct {
		method string
		target string
		code   string
	}{
		{http.MethodGet, "/v1/runs/abc", "200"},
		{http.MethodGet, "/v1/runs/missing", "404"},
		{http.MethodPost, "/v1/runs", "409"},
	}
	for _, tc := range cases {
		before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.code))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.target, nil))
		after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.code))
		require.InDelta(t, 1, after-before, 0, "%s %s", tc.method, tc.target)
	}

	// Durations are labeled by route pattern, not by the concrete path.
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
	_, err := httpRequestDurationSeconds.GetMetricWithLabelValues(http.MethodGet, "/v1/runs/{run_id}")
	require.NoError(t, err)
}
