//nolint:testpackage // requires internal access to the http.Server
package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jherrors "github.com/paveg/joinhash/internal/errors"
)

func newTestServer(t *testing.T) (*Server, *MetricsCollector, *BuildMetrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	build, err := NewBuildMetrics(reg)
	require.NoError(t, err)
	collector := NewMetricsCollector(true)
	return NewMonitoringServer(collector, reg, 9090), collector, build
}

func get(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestMonitoringServer(t *testing.T) {
	server, collector, _ := newTestServer(t)

	assert.Same(t, collector, server.collector)
	assert.Equal(t, ":9090", server.server.Addr)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, build := newTestServer(t)
	build.Observe("FillBaseline", time.Millisecond, nil)

	w := get(t, server, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `joinhash_build_operations_total{op="FillBaseline"} 1`)
}

func TestSummaryEndpoint(t *testing.T) {
	server, collector, _ := newTestServer(t)
	require.NoError(t, collector.RecordOperation("FillPerfect", 42, func() error { return nil }))

	w := get(t, server, http.MethodGet, "/summary")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var summary Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Builds)
	assert.Equal(t, int64(42), summary.Rows)
	assert.Equal(t, 1, summary.ByOp["FillPerfect"].Count)
}

func TestBuildsEndpoint(t *testing.T) {
	server, collector, _ := newTestServer(t)
	require.NoError(t, collector.RecordOperation("ResetBaseline", 16, func() error { return nil }))
	_ = collector.RecordOperation("FillBaseline", 20, func() error {
		return jherrors.FromCode("FillBaseline", jherrors.CodeTableFull)
	})

	var builds []BuildRecord
	w := get(t, server, http.MethodGet, "/builds")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &builds))
	require.Len(t, builds, 2)
	assert.Equal(t, "ResetBaseline", builds[0].Op)

	w = get(t, server, http.MethodGet, "/builds?failed=true")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &builds))
	require.Len(t, builds, 1)
	assert.Equal(t, jherrors.CodeTableFull, builds[0].Code)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := get(t, server, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, true, response["enabled"])
	assert.NotEmpty(t, response["timestamp"])
}

func TestEndpointsRejectOtherMethods(t *testing.T) {
	server, _, _ := newTestServer(t)
	for _, target := range []string{"/summary", "/builds", "/health"} {
		w := get(t, server, http.MethodPost, target)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, target)
	}
}
