package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries constant labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes application-level instruments for the relay and settlement
// paths. Instruments are registered on the default prometheus registry and
// scraped from /metrics.
type Metrics struct {
	relayRequests    *prometheus.CounterVec
	tokensCharged    *prometheus.CounterVec
	debitFailures    *prometheus.CounterVec
	settlementEvents *prometheus.CounterVec
	rateLimitDenied  *prometheus.CounterVec
	finalizerDepth   prometheus.Gauge
}

const (
	RelayModeStream = "stream"
	RelayModeUnary  = "unary"

	RelayOutcomeOK                  = "ok"
	RelayOutcomeInsufficientBalance = "insufficient_balance"
	RelayOutcomeUpstreamError       = "upstream_error"
	RelayOutcomeClientDisconnect    = "client_disconnect"
)

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// New returns the singleton metrics registry.
func New(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tokengate"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	relayRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tokengate_relay_requests_total",
		Help:        "Completion relay requests by model, mode and outcome.",
		ConstLabels: constLabels,
	}, []string{"model", "mode", "outcome"})
	tokensCharged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tokengate_tokens_charged_total",
		Help:        "Tokens debited from account balances by model.",
		ConstLabels: constLabels,
	}, []string{"model"})
	debitFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tokengate_debit_failures_total",
		Help:        "Background debit finalization failures by model.",
		ConstLabels: constLabels,
	}, []string{"model"})
	settlementEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tokengate_settlement_events_total",
		Help:        "Settlement webhook events by provider and outcome.",
		ConstLabels: constLabels,
	}, []string{"provider", "outcome"})
	rateLimitDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tokengate_rate_limit_denied_total",
		Help:        "Requests denied by the completion rate limiter.",
		ConstLabels: constLabels,
	}, []string{"endpoint"})
	finalizerDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "tokengate_finalizer_queue_depth",
		Help:        "Pending debit jobs waiting in the finalizer queue.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		relayRequests,
		tokensCharged,
		debitFailures,
		settlementEvents,
		rateLimitDenied,
		finalizerDepth,
	)

	return &Metrics{
		relayRequests:    relayRequests,
		tokensCharged:    tokensCharged,
		debitFailures:    debitFailures,
		settlementEvents: settlementEvents,
		rateLimitDenied:  rateLimitDenied,
		finalizerDepth:   finalizerDepth,
	}
}

// IncRelayRequest increments the relay request counter.
func (m *Metrics) IncRelayRequest(model, mode, outcome string) {
	if m == nil || m.relayRequests == nil {
		return
	}
	m.relayRequests.WithLabelValues(strings.TrimSpace(model), mode, outcome).Inc()
}

// AddTokensCharged records tokens debited for a model.
func (m *Metrics) AddTokensCharged(model string, tokens int64) {
	if m == nil || m.tokensCharged == nil || tokens <= 0 {
		return
	}
	m.tokensCharged.WithLabelValues(strings.TrimSpace(model)).Add(float64(tokens))
}

// IncDebitFailure increments the finalizer failure counter.
func (m *Metrics) IncDebitFailure(model string) {
	if m == nil || m.debitFailures == nil {
		return
	}
	m.debitFailures.WithLabelValues(strings.TrimSpace(model)).Inc()
}

// IncSettlementEvent increments settlement webhook counts.
func (m *Metrics) IncSettlementEvent(provider, outcome string) {
	if m == nil || m.settlementEvents == nil {
		return
	}
	m.settlementEvents.WithLabelValues(strings.TrimSpace(provider), outcome).Inc()
}

// IncRateLimitDenied increments rate limit deny counts.
func (m *Metrics) IncRateLimitDenied(endpoint string) {
	if m == nil || m.rateLimitDenied == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(strings.TrimSpace(endpoint)).Inc()
}

// SetFinalizerQueueDepth records the current finalizer backlog.
func (m *Metrics) SetFinalizerQueueDepth(depth int) {
	if m == nil || m.finalizerDepth == nil {
		return
	}
	m.finalizerDepth.Set(float64(depth))
}
