// Package netcheck monitors hub and internet reachability with cheap,
// interval-bounded TCP probes. Probes never raise; a timeout simply reads as
// unreachable until the next interval.
package netcheck

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"homedash/internal/utils"
)

const (
	// DefaultProbeTimeout bounds a single TCP connect attempt.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultCheckInterval is how often each side is re-probed.
	DefaultCheckInterval = 30 * time.Second
)

// Edge describes a reachability transition between two consecutive checks.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeUp        // false -> true
	EdgeDown      // true -> false
)

// Config holds probe targets and intervals.
type Config struct {
	HubHost string
	HubPort int

	InternetHost string // typically a public DNS server
	InternetPort int

	CheckInterval time.Duration
	ProbeTimeout  time.Duration

	// Optional UDP keepalive to stop the WiFi radio from idling.
	KeepaliveTarget   string
	KeepalivePort     int
	KeepaliveInterval time.Duration

	// Dialer overrides the TCP dialer, used by tests.
	Dialer func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Monitor tracks hub and internet reachability.
type Monitor struct {
	cfg Config

	hubUp bool
	netUp bool

	lastHubCheck  time.Time
	lastNetCheck  time.Time
	lastKeepalive time.Time

	// dial is swappable for tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// New creates a monitor. Both sides start unreachable, so the first
// successful probe reports an up-edge.
func New(cfg Config) *Monitor {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	dial := cfg.Dialer
	if dial == nil {
		dial = net.DialTimeout
	}
	return &Monitor{
		cfg:  cfg,
		dial: dial,
	}
}

// HubReachable returns the last observed hub status.
func (m *Monitor) HubReachable() bool {
	return m.hubUp
}

// InternetReachable returns the last observed internet status.
func (m *Monitor) InternetReachable() bool {
	return m.netUp
}

// CheckHub probes the hub immediately, without interval gating.
func (m *Monitor) CheckHub() bool {
	return m.probe(m.cfg.HubHost, m.cfg.HubPort)
}

// CheckInternet probes the internet target immediately.
func (m *Monitor) CheckInternet() bool {
	return m.probe(m.cfg.InternetHost, m.cfg.InternetPort)
}

func (m *Monitor) probe(host string, port int) bool {
	if host == "" {
		return false
	}
	conn, err := m.dial("tcp", fmt.Sprintf("%s:%d", host, port), m.cfg.ProbeTimeout)
	if err != nil {
		utils.Debugf("probe %s:%d failed: %v", host, port, err)
		return false
	}
	_ = conn.Close()
	return true
}

// Tick re-evaluates each side if its interval has elapsed and returns the
// edge transitions so callers can react without re-deriving state.
func (m *Monitor) Tick(now time.Time) (hubEdge, internetEdge Edge) {
	if now.Sub(m.lastNetCheck) >= m.cfg.CheckInterval {
		was := m.netUp
		m.netUp = m.CheckInternet()
		m.lastNetCheck = now

		switch {
		case was && !m.netUp:
			internetEdge = EdgeDown
			utils.Warnf("internet connection lost")
		case !was && m.netUp:
			internetEdge = EdgeUp
			utils.Infof("internet connection restored")
		}
	}

	if now.Sub(m.lastHubCheck) >= m.cfg.CheckInterval {
		was := m.hubUp
		m.hubUp = m.CheckHub()
		m.lastHubCheck = now

		switch {
		case was && !m.hubUp:
			hubEdge = EdgeDown
			utils.Warnf("hub connection lost")
		case !was && m.hubUp:
			hubEdge = EdgeUp
			utils.Infof("hub connection restored")
		}
	}

	return hubEdge, internetEdge
}

// Keepalive sends a tiny UDP packet to the configured target when its
// interval has elapsed. Failures are debug-logged only.
func (m *Monitor) Keepalive(now time.Time) {
	if m.cfg.KeepaliveTarget == "" || m.cfg.KeepaliveInterval <= 0 {
		return
	}
	if now.Sub(m.lastKeepalive) < m.cfg.KeepaliveInterval {
		return
	}
	m.lastKeepalive = now

	addr := net.JoinHostPort(m.cfg.KeepaliveTarget, strconv.Itoa(m.cfg.KeepalivePort))
	conn, err := net.DialTimeout("udp", addr, time.Second)
	if err != nil {
		utils.Debugf("keepalive failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()
	_, _ = conn.Write([]byte{0})
	utils.Debugf("keepalive sent to %s", addr)
}
