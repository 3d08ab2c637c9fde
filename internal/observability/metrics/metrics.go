package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for the conversation pipeline.
type TurnMetrics struct {
	turnsTotal         *prometheus.CounterVec
	tasksStarted       *prometheus.CounterVec
	slotRejections     *prometheus.CounterVec
	functionExecutions *prometheus.CounterVec
	llmFallbacks       prometheus.Counter
	turnLatency        *prometheus.HistogramVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citaflow",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed conversation turns",
		}, []string{"channel", "status"}),
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citaflow",
			Subsystem: "tasks",
			Name:      "started_total",
			Help:      "Tasks started by the intent detector",
		}, []string{"task"}),
		slotRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citaflow",
			Subsystem: "schedule",
			Name:      "slot_rejections_total",
			Help:      "Candidate slots rejected by the availability engine",
		}, []string{"reason"}),
		functionExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citaflow",
			Subsystem: "dispatch",
			Name:      "function_executions_total",
			Help:      "Dispatched function calls by terminal status",
		}, []string{"function", "status"}),
		llmFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citaflow",
			Subsystem: "ai",
			Name:      "llm_fallbacks_total",
			Help:      "Completions served by the fallback provider",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citaflow",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of end-to-end turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.tasksStarted, m.slotRejections, m.functionExecutions, m.llmFallbacks, m.turnLatency)
	return m
}

func (m *TurnMetrics) ObserveTurn(channel, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(channel, status).Inc()
}

func (m *TurnMetrics) ObserveTaskStarted(task string) {
	if m == nil {
		return
	}
	m.tasksStarted.WithLabelValues(task).Inc()
}

func (m *TurnMetrics) ObserveSlotRejection(reason string) {
	if m == nil {
		return
	}
	m.slotRejections.WithLabelValues(reason).Inc()
}

func (m *TurnMetrics) ObserveFunctionExecution(function, status string) {
	if m == nil {
		return
	}
	m.functionExecutions.WithLabelValues(function, status).Inc()
}

func (m *TurnMetrics) ObserveLLMFallback() {
	if m == nil {
		return
	}
	m.llmFallbacks.Inc()
}

func (m *TurnMetrics) ObserveTurnLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(channel).Observe(seconds)
}
