package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the solver and its HTTP
// surface.
type Collector struct {
	gatherer prometheus.Gatherer

	Solves        *prometheus.CounterVec
	SolveDuration *prometheus.HistogramVec
	Samples       prometheus.Histogram
	HTTPRequests  *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on the same registry
// reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	solves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recore_solves_total",
		Help: "Transients served, labeled by integrator and whether the cache answered.",
	}, []string{"integrator", "cached"}), "recore_solves_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recore_solve_duration_seconds",
		Help:    "Wall time of uncached transient solves.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"integrator"}), "recore_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	samples, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recore_trajectory_samples",
		Help:    "Number of recorded samples per transient.",
		Buckets: prometheus.ExponentialBuckets(10, 10, 7),
	}), "recore_trajectory_samples")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recore_http_requests_total",
		Help: "HTTP requests handled by the explorer, labeled by route pattern and status code.",
	}, []string{"route", "code"}), "recore_http_requests_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Solves:        solves,
		SolveDuration: durations,
		Samples:       samples,
		HTTPRequests:  requests,
	}, nil
}

// ObserveSolve records one served transient. Duration is only recorded for
// real solves.
func (c *Collector) ObserveSolve(integrator string, cached bool, samples int, d time.Duration) {
	if c == nil {
		return
	}
	c.Solves.WithLabelValues(integrator, strconv.FormatBool(cached)).Inc()
	c.Samples.Observe(float64(samples))
	if !cached {
		c.SolveDuration.WithLabelValues(integrator).Observe(d.Seconds())
	}
}

func (c *Collector) ObserveHTTP(route string, code int) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
