// Package observability holds the Prometheus instruments of the service.
package observability

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/storyteller/internal/llm"
)

const namespace = "storyteller"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Turns         *prometheus.CounterVec
	LLMCalls      *prometheus.CounterVec
	Extractions   *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	ActiveStreams prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments with reg. A nil reg uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by engine mode and outcome.",
		}, []string{"mode", "outcome"}),
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Model calls by purpose and status.",
		}, []string{"purpose", "status"}),
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_total",
			Help:      "Structured reply extractions by method.",
		}, []string{"method"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a chat turn.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 90},
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of chat streams currently open.",
		}),
		gatherer: gatherer,
	}
}

func (m *Metrics) TurnCompleted(mode, outcome string, elapsed time.Duration) {
	m.Turns.WithLabelValues(mode, outcome).Inc()
	m.TurnDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ExtractionCompleted(method string) {
	m.Extractions.WithLabelValues(method).Inc()
}

// StreamOpened bumps the open stream gauge and returns its release.
func (m *Metrics) StreamOpened() func() {
	m.ActiveStreams.Inc()
	return m.ActiveStreams.Dec
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// InstrumentProvider counts every call made through p.
func (m *Metrics) InstrumentProvider(p llm.Provider) llm.Provider {
	return &countingProvider{inner: p, calls: m.LLMCalls}
}

type countingProvider struct {
	inner llm.Provider
	calls *prometheus.CounterVec
}

func (c *countingProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := c.inner.Generate(ctx, req)
	c.count(ctx, err)
	return resp, err
}

func (c *countingProvider) Stream(ctx context.Context, req llm.Request) iter.Seq2[llm.StreamEvent, error] {
	return func(yield func(llm.StreamEvent, error) bool) {
		var failed error
		finished := false
		for ev, err := range c.inner.Stream(ctx, req) {
			if err != nil {
				failed = err
			}
			if ev.Done {
				finished = true
			}
			if !yield(ev, err) {
				break
			}
		}
		if failed == nil && !finished {
			failed = context.Canceled
		}
		c.count(ctx, failed)
	}
}

func (c *countingProvider) ModelID() string {
	return c.inner.ModelID()
}

func (c *countingProvider) count(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.calls.WithLabelValues(llm.PurposeFrom(ctx), status).Inc()
}
