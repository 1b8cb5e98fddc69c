package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSilenceThreshold = 0.02
	DefaultSilenceDuration  = 1500 * time.Millisecond
	// DefaultPollInterval approximates one display frame at 60Hz.
	DefaultPollInterval = 16 * time.Millisecond
)

// Timer is the cancellable one-shot the monitor arms. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type MonitorConfig struct {
	Threshold    float64
	Silence      time.Duration
	PollInterval time.Duration
	// AfterFunc overrides the timer source; nil uses time.AfterFunc.
	AfterFunc AfterFunc
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultSilenceThreshold
	}
	if c.Silence <= 0 {
		c.Silence = DefaultSilenceDuration
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.AfterFunc == nil {
		c.AfterFunc = realAfterFunc
	}
	return c
}

// Leveler is anything that reports a normalized audio level.
type Leveler interface {
	Level() float64
}

// Monitor watches audio levels and calls onSilence once the level has stayed
// below the threshold for the configured silence duration. Any sample at or
// above the threshold disarms the pending countdown.
type Monitor struct {
	cfg       MonitorConfig
	onSilence func()
	logger    *slog.Logger

	mu     sync.Mutex
	armed  Timer
	gen    uint64
	fired  bool
	closed bool
}

func NewMonitor(cfg MonitorConfig, onSilence func(), logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg.withDefaults(),
		onSilence: onSilence,
		logger:    logger,
	}
}

// Observe feeds one level sample.
func (m *Monitor) Observe(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.fired {
		return
	}

	if level < m.cfg.Threshold {
		if m.armed == nil {
			m.gen++
			gen := m.gen
			m.armed = m.cfg.AfterFunc(m.cfg.Silence, func() { m.fire(gen) })
		}
		return
	}

	if m.armed != nil {
		m.armed.Stop()
		m.armed = nil
	}
}

// fire runs on the timer's goroutine. A timer that was disarmed or replaced
// after it started firing must not stop the recording.
func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if m.closed || m.fired || m.armed == nil || m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.fired = true
	m.armed = nil
	m.mu.Unlock()

	m.logger.Info("auto-stop: silence detected", "silence", m.cfg.Silence)
	m.onSilence()
}

// Armed reports whether a silence countdown is pending.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed != nil
}

// Run polls src at the configured interval until ctx is done or the monitor
// is closed.
func (m *Monitor) Run(ctx context.Context, src Leveler) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	defer m.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.isDone() {
				return
			}
			m.Observe(src.Level())
		}
	}
}

func (m *Monitor) isDone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed || m.fired
}

// Close cancels any pending countdown. Further samples are ignored.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.armed != nil {
		m.armed.Stop()
		m.armed = nil
	}
}
