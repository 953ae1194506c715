// Package notify delivers desktop and log-file alerts for dashboard events:
// mail arriving, the hub dropping or recovering. Delivery is best-effort; a
// failed channel never disturbs the sync loop.
package notify

import (
	"time"
)

// Kind identifies the type of alert.
type Kind string

const (
	KindMailArrived Kind = "mail_arrived"
	KindHubOffline  Kind = "hub_offline"
	KindHubOnline   Kind = "hub_online"
	KindTest        Kind = "test"
)

// Event is one alert to be delivered.
type Event struct {
	Kind      Kind
	Title     string
	Message   string
	Timestamp time.Time
}

// Sender delivers events. Implemented by Manager and by test fakes.
type Sender interface {
	Send(e Event) error
}

// Channel is one delivery mechanism.
type Channel interface {
	Send(e Event) error
	Close() error
}

// Config selects which channels and event kinds are active.
type Config struct {
	Enabled bool
	OS      OSConfig
	Log     LogConfig
}

// OSConfig configures the desktop notification channel.
type OSConfig struct {
	Enabled        bool
	OnMail         bool
	OnConnectivity bool
}

// LogConfig configures the append-only alert log channel.
type LogConfig struct {
	Enabled bool
	Path    string
}

// Manager fans events out to every enabled channel.
type Manager struct {
	channels []Channel
	enabled  bool
}

// Option customizes manager construction.
type Option func(*Manager)

// WithChannel appends an extra delivery channel, used by tests.
func WithChannel(ch Channel) Option {
	return func(m *Manager) {
		m.channels = append(m.channels, ch)
	}
}

// NewManager creates a manager from configuration.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{enabled: cfg.Enabled}

	if cfg.Enabled {
		if cfg.OS.Enabled {
			m.channels = append(m.channels, newOSChannel(cfg.OS, nil))
		}
		if cfg.Log.Enabled && cfg.Log.Path != "" {
			m.channels = append(m.channels, newLogChannel(cfg.Log.Path))
		}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Sender = (*Manager)(nil)

// Send delivers the event to every channel, returning the last error.
func (m *Manager) Send(e Event) error {
	if !m.enabled && len(m.channels) == 0 {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Send(e); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SendAsync delivers the event without blocking the caller.
func (m *Manager) SendAsync(e Event) {
	go func() { _ = m.Send(e) }()
}

// Close shuts down every channel.
func (m *Manager) Close() error {
	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChannelCount returns the number of active channels.
func (m *Manager) ChannelCount() int {
	return len(m.channels)
}
