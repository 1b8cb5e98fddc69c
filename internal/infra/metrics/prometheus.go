package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

var allStatuses = []domain.Status{
	domain.StatusIdle,
	domain.StatusRequestingPermission,
	domain.StatusRecording,
	domain.StatusProcessing,
	domain.StatusReady,
	domain.StatusError,
}

// Metrics observes session transitions and exposes them to Prometheus.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	SessionsStarted prometheus.Counter
	SessionsFailed  prometheus.Counter
	RepliesReceived prometheus.Counter
	Status          *prometheus.GaugeVec
	RecordingTime   prometheus.Histogram
	RoundTripTime   prometheus.Histogram

	mu          sync.Mutex
	recordStart map[string]time.Time
	uploadStart map[string]time.Time

	gatherer prometheus.Gatherer
}

// New registers the voice chat metrics on reg. A nil reg uses a fresh
// registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicechat_transitions_total",
			Help: "Session state transitions by target status",
		}, []string{"to"}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_sessions_failed_total",
			Help: "Total number of sessions that ended in the error state",
		}),
		RepliesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_replies_received_total",
			Help: "Total number of synthesized replies received",
		}),
		Status: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicechat_status",
			Help: "1 for the current session status, 0 otherwise",
		}, []string{"status"}),
		RecordingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicechat_recording_duration_seconds",
			Help:    "Time spent recording before the clip was finalized",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		RoundTripTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicechat_reply_latency_seconds",
			Help:    "Time from upload start to reply ready",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),
		recordStart: make(map[string]time.Time),
		uploadStart: make(map[string]time.Time),
		gatherer:    reg,
	}

	for _, s := range allStatuses {
		m.Status.WithLabelValues(string(s)).Set(0)
	}
	m.Status.WithLabelValues(string(domain.StatusIdle)).Set(1)

	return m
}

func (m *Metrics) OnTransition(t application.Transition) {
	m.Transitions.WithLabelValues(string(t.To)).Inc()
	m.Status.WithLabelValues(string(t.From)).Set(0)
	m.Status.WithLabelValues(string(t.To)).Set(1)

	id := t.Snapshot.SessionID
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch t.To {
	case domain.StatusRequestingPermission:
		m.SessionsStarted.Inc()
	case domain.StatusRecording:
		m.recordStart[id] = now
	case domain.StatusProcessing:
		if start, ok := m.recordStart[id]; ok {
			m.RecordingTime.Observe(now.Sub(start).Seconds())
			delete(m.recordStart, id)
		}
		m.uploadStart[id] = now
	case domain.StatusReady:
		m.RepliesReceived.Inc()
		if start, ok := m.uploadStart[id]; ok {
			m.RoundTripTime.Observe(now.Sub(start).Seconds())
			delete(m.uploadStart, id)
		}
	case domain.StatusError:
		m.SessionsFailed.Inc()
		delete(m.recordStart, id)
		delete(m.uploadStart, id)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
