// Package daemon runs the sync engine on a steady tick and exposes a Unix
// socket so the CLI can query status and submit actions against the running
// process instead of spawning a second engine.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"homedash/internal/core"
	"homedash/internal/shutdown"
	"homedash/internal/utils"
)

// Config holds daemon runtime settings.
type Config struct {
	SocketPath   string
	TickInterval time.Duration
	LogPath      string
}

// Message is a request sent over the control socket.
type Message struct {
	Type    string `json:"type"`
	Entity  string `json:"entity,omitempty"`
	ItemUID string `json:"uid,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Message types understood by the daemon.
const (
	MsgStatus     = "status"
	MsgRefresh    = "refresh"
	MsgComplete   = "complete"
	MsgAckMailbox = "ack_mailbox"
	MsgStop       = "stop"
)

// Response is the daemon's reply to a control message.
type Response struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Running   bool           `json:"running"`
	Applied   bool           `json:"applied,omitempty"`
	TickCount int64          `json:"tick_count,omitempty"`
	LastTick  string         `json:"last_tick,omitempty"`
	Snapshot  *core.Snapshot `json:"snapshot,omitempty"`
}

// Daemon owns the tick loop and the control socket.
type Daemon struct {
	cfg      *Config
	engine   *core.Engine
	mgr      *shutdown.Manager
	listener net.Listener
	logger   *utils.FileLogger

	// engineMu serializes engine access between the tick loop and
	// connection handlers.
	engineMu  sync.Mutex
	mu        sync.RWMutex
	tickCount int64
	lastTick  time.Time
	refreshCh chan struct{}
}

// New creates a daemon around an engine.
func New(cfg *Config, engine *core.Engine, mgr *shutdown.Manager) *Daemon {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Daemon{
		cfg:       cfg,
		engine:    engine,
		mgr:       mgr,
		refreshCh: make(chan struct{}, 1),
	}
}

// Run starts the control socket and the tick loop, returning when shutdown
// is initiated.
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.cfg.SocketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	// Remove a stale socket from an unclean exit.
	_ = os.Remove(d.cfg.SocketPath)

	listener, err := net.Listen("unix", d.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to create control socket: %w", err)
	}
	d.listener = listener

	if d.cfg.LogPath != "" {
		if fl, err := utils.NewFileLogger(d.cfg.LogPath); err == nil {
			d.logger = fl
			defer d.logger.Close()
		}
	}

	d.log("daemon started (pid %d, tick %v)", os.Getpid(), d.cfg.TickInterval)

	go d.handleConnections()

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	defer func() {
		_ = d.listener.Close()
		_ = os.Remove(d.cfg.SocketPath)
	}()

	// Run one cycle immediately so the first status query has data.
	d.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			d.log("daemon stopping")
			return nil
		case <-d.refreshCh:
			d.tick(ctx)
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	d.engineMu.Lock()
	d.engine.Tick(ctx, time.Now())
	d.engineMu.Unlock()

	d.mu.Lock()
	d.tickCount++
	d.lastTick = time.Now()
	d.mu.Unlock()
}

func (d *Daemon) handleConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.mgr.Context().Done():
				return
			default:
				d.log("accept error: %v", err)
				return
			}
		}
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var msg Message
	if err := decoder.Decode(&msg); err != nil {
		return
	}

	resp := d.dispatch(msg)
	_ = encoder.Encode(resp)
}

func (d *Daemon) dispatch(msg Message) Response {
	switch msg.Type {
	case MsgStatus:
		d.engineMu.Lock()
		snap := d.engine.Snapshot(time.Now())
		d.engineMu.Unlock()

		d.mu.RLock()
		resp := Response{
			Status:    "ok",
			Running:   true,
			TickCount: d.tickCount,
			LastTick:  d.lastTick.Format(time.RFC3339),
			Snapshot:  &snap,
		}
		d.mu.RUnlock()
		return resp

	case MsgRefresh:
		d.engineMu.Lock()
		d.engine.ForceRefresh()
		d.engineMu.Unlock()
		select {
		case d.refreshCh <- struct{}{}:
		default:
		}
		return Response{Status: "ok", Running: true}

	case MsgComplete:
		d.engineMu.Lock()
		applied, err := d.engine.CompleteTask(context.Background(), msg.Entity, msg.ItemUID, msg.Summary)
		d.engineMu.Unlock()
		if err != nil {
			return Response{Status: "error", Running: true, Message: err.Error()}
		}
		return Response{Status: "ok", Running: true, Applied: applied}

	case MsgAckMailbox:
		d.engineMu.Lock()
		applied, err := d.engine.AckMailbox(context.Background())
		d.engineMu.Unlock()
		if err != nil {
			return Response{Status: "error", Running: true, Message: err.Error()}
		}
		return Response{Status: "ok", Running: true, Applied: applied}

	case MsgStop:
		d.mgr.Shutdown()
		return Response{Status: "ok", Running: false}

	default:
		return Response{Status: "error", Running: true, Message: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
}

func (d *Daemon) log(format string, args ...interface{}) {
	utils.Infof(format, args...)
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

// Client talks to a running daemon over its control socket.
type Client struct {
	socketPath string
}

// NewClient creates a client for the daemon at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Status queries the daemon's current state.
func (c *Client) Status() (*Response, error) {
	return c.send(Message{Type: MsgStatus})
}

// Refresh asks the daemon to refresh every domain now.
func (c *Client) Refresh() (*Response, error) {
	return c.send(Message{Type: MsgRefresh})
}

// Complete asks the daemon to mark a task done.
func (c *Client) Complete(entity, uid, summary string) (*Response, error) {
	return c.send(Message{Type: MsgComplete, Entity: entity, ItemUID: uid, Summary: summary})
}

// AckMailbox asks the daemon to acknowledge today's mail.
func (c *Client) AckMailbox() (*Response, error) {
	return c.send(Message{Type: MsgAckMailbox})
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*Response, error) {
	return c.send(Message{Type: MsgStop})
}

func (c *Client) send(msg Message) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", c.socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}

// IsRunning reports whether a daemon is listening on socketPath.
func IsRunning(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
