package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the dialogue engine.
type ConversationMetrics struct {
	turnsTotal      *prometheus.CounterVec
	stateExecutions prometheus.Counter
	guardTrips      prometheus.Counter
	llmLatency      *prometheus.HistogramVec
	searchTier      *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propertyagent",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed turns by terminal state",
		}, []string{"terminal_state"}),
		stateExecutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "propertyagent",
			Subsystem: "conversation",
			Name:      "state_executions_total",
			Help:      "Total state handler executions across all turns",
		}),
		guardTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "propertyagent",
			Subsystem: "conversation",
			Name:      "guard_trips_total",
			Help:      "Turns aborted by the execution cap",
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "propertyagent",
			Subsystem: "conversation",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM calls by purpose",
			Buckets:   prometheus.DefBuckets,
		}, []string{"purpose"}),
		searchTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propertyagent",
			Subsystem: "matching",
			Name:      "search_tier_total",
			Help:      "Property searches by the tier that produced results",
		}, []string{"tier"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.stateExecutions, m.guardTrips, m.llmLatency, m.searchTier)
	return m
}

func (m *ConversationMetrics) ObserveTurn(terminalState string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(terminalState).Inc()
}

func (m *ConversationMetrics) ObserveStateExecution() {
	if m == nil {
		return
	}
	m.stateExecutions.Inc()
}

func (m *ConversationMetrics) ObserveGuardTrip() {
	if m == nil {
		return
	}
	m.guardTrips.Inc()
}

func (m *ConversationMetrics) ObserveLLMLatency(purpose string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(purpose).Observe(seconds)
}

func (m *ConversationMetrics) ObserveSearchTier(tier string) {
	if m == nil {
		return
	}
	m.searchTier.WithLabelValues(tier).Inc()
}
