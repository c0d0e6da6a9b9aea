// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth methods.
const (
	MethodRegister = "register"
	MethodPassword = "password"
	MethodOAuth    = "oauth"
	MethodToken    = "token"
)

// Outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Auth holds the counters the auth service and guard increment.
type Auth struct {
	Attempts *prometheus.CounterVec
	Links    *prometheus.CounterVec
}

// NewAuth creates the counters and registers them on reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	m := &Auth{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ers_auth_attempts_total",
				Help: "Authentication attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		Links: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ers_identity_links_total",
				Help: "External identities linked to existing accounts by provider",
			},
			[]string{"provider"},
		),
	}
	reg.MustRegister(m.Attempts, m.Links)
	return m
}

// Observe is safe to call on a nil *Auth.
func (m *Auth) Observe(method, outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(method, outcome).Inc()
}

func (m *Auth) Linked(provider string) {
	if m == nil {
		return
	}
	m.Links.WithLabelValues(provider).Inc()
}
