// Package metrics holds the prometheus collectors exported by palchat.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	gatewayRequests  *prometheus.CounterVec
	gatewayFallbacks *prometheus.CounterVec
	messagesAppended *prometheus.CounterVec
}

// New builds the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what most tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "palchat",
			Name:      "gateway_requests_total",
			Help:      "Calls made to the generative AI gateway.",
		}, []string{"operation"}),
		gatewayFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "palchat",
			Name:      "gateway_fallbacks_total",
			Help:      "Gateway calls answered with the local fallback value.",
		}, []string{"operation"}),
		messagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "palchat",
			Name:      "messages_appended_total",
			Help:      "Messages appended to conversations.",
		}, []string{"sender"}),
	}
	if reg != nil {
		reg.MustRegister(m.gatewayRequests, m.gatewayFallbacks, m.messagesAppended)
	}
	return m
}

func (m *Metrics) GatewayRequest(operation string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation).Inc()
}

func (m *Metrics) GatewayFallback(operation string) {
	if m == nil {
		return
	}
	m.gatewayFallbacks.WithLabelValues(operation).Inc()
}

// MessageAppended counts an append; sender is "self" or "participant".
func (m *Metrics) MessageAppended(sender string) {
	if m == nil {
		return
	}
	m.messagesAppended.WithLabelValues(sender).Inc()
}
