package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/recore/internal/cache"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/observability"
)

func newTestServer(t *testing.T) (http.Handler, *observability.Collector) {
	t.Helper()
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	mem, err := cache.NewMemory(16)
	require.NoError(t, err)
	exp, err := experiment.New(kinetics.DefaultConstants(),
		experiment.WithCache(mem),
		experiment.WithCollector(collector),
	)
	require.NoError(t, err)
	return New(exp, WithCollector(collector)).Handler(), collector
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

type transientBody struct {
	Label      string         `json:"label"`
	Rho        float64        `json:"rho"`
	TEnd       float64        `json:"t_end"`
	Dt         float64        `json:"dt"`
	Integrator string         `json:"integrator"`
	Cached     bool           `json:"cached"`
	Samples    int            `json:"samples"`
	Times      []float64      `json:"times"`
	Powers     []*float64     `json:"powers"`
	Metrics    map[string]any `json:"metrics"`
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestTransientDefaults(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/api/transient?t_end=0.5")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body transientBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	want := kinetics.SolveDefault(kinetics.DefaultRho, 0.5, kinetics.DefaultDt)
	assert.Equal(t, "custom", body.Label)
	assert.Equal(t, kinetics.DefaultRho, body.Rho)
	assert.Equal(t, "rk4", body.Integrator)
	assert.Equal(t, want.Len(), body.Samples)
	require.Len(t, body.Powers, want.Len())
	assert.Equal(t, 1.0, *body.Powers[0])
	assert.Equal(t, want.Final(), *body.Powers[len(body.Powers)-1])
	assert.Contains(t, body.Metrics, "prompt_jump")
	assert.Contains(t, body.Metrics, "peak_power")
}

func TestTransientCachesRepeatedRequests(t *testing.T) {
	h, collector := newTestServer(t)
	for i := 0; i < 2; i++ {
		rr := get(t, h, "/api/transient?rho=0.003&t_end=0.2")
		require.Equal(t, http.StatusOK, rr.Code)
		var body transientBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, i == 1, body.Cached)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/api/transient", "200")))
}

func TestTransientPreset(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/api/transient?preset=scram&t_end=0.1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body transientBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "scram", body.Label)
	assert.Equal(t, -0.01, body.Rho)
	assert.Equal(t, 0.1, body.TEnd)
	assert.Less(t, *body.Powers[len(body.Powers)-1], 1.0)
}

func TestTransientDivergedPowersAreNull(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/api/transient?rho=0.01&t_end=5")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body transientBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotNil(t, body.Powers[0])
	assert.Nil(t, body.Powers[len(body.Powers)-1])
}

func TestTransientBadRequests(t *testing.T) {
	h, _ := newTestServer(t)
	tests := []struct {
		name  string
		query string
	}{
		{"not a number", "rho=fast"},
		{"NaN", "rho=NaN"},
		{"zero dt", "dt=0"},
		{"negative horizon", "t_end=-1"},
		{"unknown parameter", "beta=0.1"},
		{"unknown preset", "preset=meltdown"},
		{"unknown integrator", "integrator=rk45"},
		{"too many samples", "t_end=1000&dt=1e-6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, h, "/api/transient?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestTransientSVG(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/api/transient.svg?rho=0.0035&t_end=0.2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Step reactivity ρ = 0.0035")

	rr = get(t, h, "/api/transient.svg?dt=-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPresetsAndConstants(t *testing.T) {
	h, _ := newTestServer(t)

	rr := get(t, h, "/api/presets")
	require.Equal(t, http.StatusOK, rr.Code)
	var presets []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &presets))
	require.Len(t, presets, 5)
	assert.Equal(t, "default", presets[0]["name"])

	rr = get(t, h, "/api/constants")
	require.Equal(t, http.StatusOK, rr.Code)
	var consts map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &consts))
	assert.InDelta(t, 0.00645, consts["beta_eff"], 1e-12)
	assert.InDelta(t, 2e-5, consts["generation_time"], 1e-18)
	assert.Len(t, consts["groups"], kinetics.NumGroups)
}

func TestIndexPage(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, want := range []string{`min="0.0005"`, `max="0.01"`, `step="0.0005"`, `value="0.002"`, "/api/transient.svg"} {
		assert.True(t, strings.Contains(body, want), "index page missing %s", want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	get(t, h, "/healthz")
	rr := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `recore_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestNotFound(t *testing.T) {
	h, _ := newTestServer(t)
	rr := get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
