package xrcli

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the work done by sessions.  A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	commands prometheus.Counter
	commits  *prometheus.CounterVec
}

// NewMetrics creates the session collectors and registers them with reg.  A
// nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xrcli",
			Name:      "commands_sent_total",
			Help:      "Number of commands sent to devices.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrcli",
			Name:      "commits_total",
			Help:      "Number of commits by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.commands, m.commits)
	}
	return m
}

func (m *Metrics) commandSent() {
	if m == nil {
		return
	}
	m.commands.Inc()
}

func (m *Metrics) commitDone(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.commits.WithLabelValues(result).Inc()
}
