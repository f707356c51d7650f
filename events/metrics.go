package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics turns the event stream into Prometheus collectors.
type Metrics struct {
	events      *prometheus.CounterVec
	tasksActive prometheus.Gauge
	apiCalls    *prometheus.CounterVec
	tokens      *prometheus.CounterVec
	cost        prometheus.Counter
	artifacts   *prometheus.CounterVec
	compactions prometheus.Counter
}

// MustNewMetrics registers the collectors with reg and panics on conflict.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliengineer",
			Name:      "events_total",
			Help:      "Events observed on the bus by kind.",
		}, []string{"kind"}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cliengineer",
			Name:      "tasks_active",
			Help:      "Tasks started and not yet completed or failed.",
		}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliengineer",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Model calls by provider and outcome.",
		}, []string{"provider", "status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliengineer",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens sent and received by provider.",
		}, []string{"provider", "direction"}),
		cost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cliengineer",
			Subsystem: "llm",
			Name:      "cost_usd_total",
			Help:      "Estimated spend in US dollars.",
		}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliengineer",
			Name:      "artifacts_total",
			Help:      "Artifact writes by action.",
		}, []string{"action"}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cliengineer",
			Subsystem: "context",
			Name:      "compressions_total",
			Help:      "Conversation compressions performed.",
		}),
	}
	reg.MustRegister(m.events, m.tasksActive, m.apiCalls, m.tokens, m.cost, m.artifacts, m.compactions)
	return m
}

// Observe updates the collectors for a single event.
func (m *Metrics) Observe(e Event) {
	m.events.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case KindTaskStarted:
		m.tasksActive.Inc()
	case KindTaskCompleted, KindTaskFailed:
		m.tasksActive.Dec()
	case KindAPICallCompleted:
		m.apiCalls.WithLabelValues(e.String(KeyProvider), "success").Inc()
	case KindAPICallFailed:
		m.apiCalls.WithLabelValues(e.String(KeyProvider), "error").Inc()
	case KindTokensUsed:
		provider := e.String(KeyProvider)
		m.tokens.WithLabelValues(provider, "input").Add(float64(e.Int(KeyInputTokens)))
		m.tokens.WithLabelValues(provider, "output").Add(float64(e.Int(KeyOutputTokens)))
		if c := e.Float(KeyCost); c > 0 {
			m.cost.Add(c)
		}
	case KindArtifactCreated:
		m.artifacts.WithLabelValues("created").Inc()
	case KindArtifactUpdated:
		m.artifacts.WithLabelValues("updated").Inc()
	case KindArtifactDeleted:
		m.artifacts.WithLabelValues("deleted").Inc()
	case KindContextCompressed:
		m.compactions.Inc()
	}
}

// Consume observes events from sub until its channel closes or ctx is done.
func (m *Metrics) Consume(ctx context.Context, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}
