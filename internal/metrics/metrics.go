package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors used across the bot.
type Metrics struct {
	IncomingMessages *prometheus.CounterVec
	Intents          *prometheus.CounterVec
	Replies          *prometheus.CounterVec
	ReplyLatency     *prometheus.HistogramVec
	FormRequests     *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	FXRequests       *prometheus.CounterVec
	FXLatency        *prometheus.HistogramVec
}

// New registers all collectors under namespace. A nil registerer uses the default one.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "subtrack"
	}
	m := &Metrics{
		IncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incoming_messages_total",
			Help:      "User inputs received, by channel.",
		}, []string{"channel"}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Classified intents.",
		}, []string{"intent"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Assistant replies appended to a transcript.",
		}, []string{"intent"}),
		ReplyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_generation_seconds",
			Help:      "Time spent generating a reply, excluding the simulated delay.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"intent"}),
		FormRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_requests_total",
			Help:      "Add-subscription forms requested, by prefill state.",
		}, []string{"prefilled"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Inputs rejected by the per-user rate limiter.",
		}, []string{"channel"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by component.",
		}, []string{"component"}),
		FXRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_requests_total",
			Help:      "Exchange-rate API calls.",
		}, []string{"endpoint", "status"}),
		FXLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fx_request_seconds",
			Help:      "Exchange-rate API latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.IncomingMessages,
		m.Intents,
		m.Replies,
		m.ReplyLatency,
		m.FormRequests,
		m.RateLimited,
		m.Errors,
		m.FXRequests,
		m.FXLatency,
	)
	return m
}

// ObserveError is nil-safe so optional components can report without guards.
func (m *Metrics) ObserveError(component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component).Inc()
}
