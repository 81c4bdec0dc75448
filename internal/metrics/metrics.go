// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sign-in outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeCancelled     = "cancelled"
	OutcomeFailed        = "failed"
	OutcomeStateMismatch = "state_mismatch"
	OutcomeNoMatch       = "no_match"
)

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	signIns     *prometheus.CounterVec
	signOuts    *prometheus.CounterVec
	revocations *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsdk_signin_flows_total",
			Help: "Redirect sign-in flows by outcome",
		}, []string{"outcome", "response_type"}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsdk_signouts_total",
			Help: "Sign-outs by mode",
		}, []string{"mode"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsdk_revocations_total",
			Help: "Token revocation attempts by kind and result",
		}, []string{"kind", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsdk_token_refresh_total",
			Help: "Token refresh attempts by result",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.signIns, m.signOuts, m.revocations, m.refreshes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SignIn(outcome, responseType string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(outcome, responseType).Inc()
}

func (m *Metrics) SignOut(mode string) {
	if m == nil {
		return
	}
	m.signOuts.WithLabelValues(mode).Inc()
}

func (m *Metrics) Revocation(kind string, err error) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) Refresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
