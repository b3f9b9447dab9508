package orchestrator

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/f3rmion/xmrsig/errs"
)

const namespace = "xmrsig"

// Stages label the round an event belongs to.
const (
	stageKeyImage = "key_image"
	stageSigning  = "signing"
)

// Metrics are the orchestrator's Prometheus collectors.
type Metrics struct {
	sessions *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	dropped  prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, which may
// be nil to leave them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Signing and key image attempts by stage and outcome.",
		}, []string{"stage", "outcome"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_timeouts_total",
			Help:      "Rounds that ended with missing contributions.",
		}, []string{"stage"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Attempts restarted with a different signer subset.",
		}, []string{"stage"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Messages discarded because their session was not open.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_sign_seconds",
			Help:      "Time to sign a whole transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.timeouts, m.retries, m.dropped, m.duration)
	}
	return m
}

// outcome maps an attempt result to its label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, errs.RoundTimeout):
		return "timeout"
	case errors.Is(err, errs.InsufficientParticipants):
		return "insufficient"
	}
	return "failed"
}

func (m *Metrics) attempt(stage string, err error) {
	m.sessions.WithLabelValues(stage, outcome(err)).Inc()
	if errors.Is(err, errs.RoundTimeout) {
		m.timeouts.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) transaction(start time.Time, err error) {
	m.duration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
}
