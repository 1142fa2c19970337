// Package metrics holds the Prometheus collectors the agent updates.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Command outcomes recorded on axon_commands_total.
const (
	OutcomeExecuted  = "executed"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
	OutcomeUnknown   = "unknown"
)

type Metrics struct {
	publishes       *prometheus.CounterVec
	publishFailures prometheus.Counter
	sampleFailures  prometheus.Counter
	commands        *prometheus.CounterVec
	value           prometheus.Gauge
	state           prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axon_publish_total",
			Help: "Discovery payloads successfully published, by status.",
		}, []string{"status"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axon_publish_failures_total",
			Help: "Discovery payloads the broker did not accept.",
		}),
		sampleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axon_sample_failures_total",
			Help: "Ticks skipped because the metric could not be sampled.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axon_commands_total",
			Help: "Inbound commands by dispatch outcome.",
		}, []string{"outcome"}),
		value: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "axon_metric_value",
			Help: "Last sampled metric value in percent.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "axon_agent_state",
			Help: "Agent loop state: 0 disconnected, 1 connecting, 2 connected, 3 shutting down, 4 closed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.publishes, m.publishFailures, m.sampleFailures, m.commands, m.value, m.state)
	}
	return m
}

func (m *Metrics) Published(status string) { m.publishes.WithLabelValues(status).Inc() }
func (m *Metrics) PublishFailed()          { m.publishFailures.Inc() }
func (m *Metrics) SampleFailed()           { m.sampleFailures.Inc() }
func (m *Metrics) Command(outcome string)  { m.commands.WithLabelValues(outcome).Inc() }
func (m *Metrics) SetValue(v float64)      { m.value.Set(v) }
func (m *Metrics) SetState(s int)          { m.state.Set(float64(s)) }
