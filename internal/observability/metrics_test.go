package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.ObserveSolve("rk4", false, 5001, 20*time.Millisecond)
	collector.ObserveSolve("rk4", true, 5001, 0)
	collector.ObserveSolve("rk4", true, 5001, 0)

	if got := testutil.ToFloat64(collector.Solves.WithLabelValues("rk4", "false")); got != 1 {
		t.Fatalf("uncached solves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Solves.WithLabelValues("rk4", "true")); got != 2 {
		t.Fatalf("cached solves = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "recore_solve_duration_seconds", map[string]string{"integrator": "rk4"}); count != 1 {
		t.Fatalf("solve duration sample_count = %d, want 1", count)
	}
	if count := histogramSampleCount(t, reg, "recore_trajectory_samples", nil); count != 3 {
		t.Fatalf("trajectory samples sample_count = %d, want 3", count)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	first.ObserveHTTP("/healthz", 200)
	if got := testutil.ToFloat64(second.HTTPRequests.WithLabelValues("/healthz", "200")); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveSolve("rk4", false, 1, time.Second)
	c.ObserveHTTP("/", 200)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	collector.ObserveSolve("euler", false, 10, time.Millisecond)
	collector.ObserveHTTP("", 404)

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"recore_solves_total",
		"recore_solve_duration_seconds",
		"recore_trajectory_samples",
		`recore_http_requests_total{code="404",route="unmatched"} 1`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
