package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	GatewayRequests   *prometheus.CounterVec
	GatewayDuration   *prometheus.HistogramVec
	TokenRefreshes    *prometheus.CounterVec
	Webhooks          *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GatewayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipment_gateway_requests_total",
				Help: "Courier aggregator requests by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		GatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shipment_gateway_request_duration_seconds",
				Help:    "Courier aggregator request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipment_gateway_token_refreshes_total",
				Help: "Aggregator logins by outcome",
			},
			[]string{"status"},
		),
		Webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipment_webhooks_total",
				Help: "Inbound tracking webhooks by result",
			},
			[]string{"result"},
		),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipment_status_transitions_total",
				Help: "Order status changes applied from courier updates",
			},
			[]string{"to", "source"},
		),
	}
}

// RecordGatewayRequest records one aggregator call.
func (m *Metrics) RecordGatewayRequest(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(operation, status).Inc()
	m.GatewayDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordTokenRefresh records a login attempt.
func (m *Metrics) RecordTokenRefresh(status string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(status).Inc()
}

// RecordWebhook records an inbound webhook outcome.
func (m *Metrics) RecordWebhook(result string) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(result).Inc()
}

// RecordStatusTransition records an applied order status change.
func (m *Metrics) RecordStatusTransition(to, source string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(to, source).Inc()
}
