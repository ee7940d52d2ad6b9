package metrics

import (
	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	Commands      *prometheus.CounterVec
	Confirmations *prometheus.CounterVec
	Keys          *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keybind",
			Name:      "commands_total",
			Help:      "Commands handled, by command name and outcome.",
		}, []string{"command", "outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keybind",
			Name:      "confirmations_total",
			Help:      "Trusted confirmation messages, by outcome.",
		}, []string{"outcome"}),
		Keys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "keybind",
			Name:      "keys",
			Help:      "Keys currently in each lifecycle state.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.Confirmations, m.Keys)
	}
	return m
}

func (m *Metrics) ObserveCommand(command, outcome string) {
	m.Commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ObserveConfirmation(outcome string) {
	m.Confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetKeyCounts(counts map[key.State]int) {
	for state, n := range counts {
		m.Keys.WithLabelValues(string(state)).Set(float64(n))
	}
}
