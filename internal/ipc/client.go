// Package ipc implements the Unix-socket, newline-delimited-JSON transport
// between an agent and its orchestrator: connection state machine with
// exponential-backoff reconnection, heartbeat loop, listen loop, and the
// task-admission handoff to an AgentCore-shaped TaskHandler.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/metrics"
)

const (
	backoffBase          = 10 * time.Second
	backoffMax           = 60 * time.Second
	maxReconnectAttempts = 30
	jitterFraction       = 0.2

	heartbeatInterval = 30 * time.Second
	readTimeout       = 1 * time.Second
	maxLoopErrors     = 5
	stopJoinTimeout   = 5 * time.Second
)

// State is the connection state machine described in §3 of the specification.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// TaskHandler is implemented by AgentCore. The listen loop calls HandleTask
// synchronously for every inbound task message — implementations MUST NOT
// block, dispatching real work onto their own goroutine instead. Sweep is
// invoked once per heartbeat tick, before the heartbeat is built, so expired
// ActiveTasks can be finalized. Stats reports the values to embed in the
// heartbeat payload.
type TaskHandler interface {
	HandleTask(msg Message, send func(Message) bool)
	Sweep(send func(Message) bool)
	Stats() (activeTasks, activeTasksLimit int, busy bool)
}

// Stats exposes the connection metrics named in §3 (ConnectionState).
type Stats struct {
	ConnectCount        int
	DisconnectCount     int
	CumulativeConnected time.Duration
	HeartbeatsSent      int
	HeartbeatsFailed    int
}

// Capabilities describes what this agent can do, sent once at registration.
type Capabilities struct {
	SupportsHeartbeat bool     `json:"supports_heartbeat"`
	SupportsTasks     bool     `json:"supports_tasks"`
	SupportsEvents    bool     `json:"supports_events"`
	Tools             []string `json:"tools"`
	Languages         []string `json:"languages"`
	ScanTypes         []string `json:"scan_types"`
	OutputFormats     []string `json:"output_formats"`
}

// Config configures a Client.
type Config struct {
	SocketPath   string
	AgentName    string
	Version      string
	Capabilities Capabilities
}

// Client maintains a single duplex Unix-socket connection to the
// orchestrator, reconnecting with exponential backoff on any failure.
type Client struct {
	cfg     Config
	handler TaskHandler
	logger  *zap.Logger

	startTime time.Time

	mu    sync.Mutex
	conn  net.Conn
	state State
	stats Stats

	writeMu sync.Mutex
}

// New creates a Client. Call Run to start the connection loop.
func New(cfg Config, handler TaskHandler, logger *zap.Logger) *Client {
	return &Client{
		cfg:       cfg,
		handler:   handler,
		logger:    logger.Named("ipc"),
		startTime: time.Now(),
	}
}

// Run drives the reconnect loop until ctx is cancelled or the reconnect
// attempt ceiling is reached, in which case it returns a non-nil error and
// the caller (main) should exit the process.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			c.logger.Info("ipc client stopped")
			return nil
		}

		connectsBefore := c.Stats().ConnectCount
		sessionErr := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if sessionErr == nil {
			// A session that ends with a nil error only happens on ctx
			// cancellation, handled above; anything else is a failure.
			continue
		}

		if c.Stats().ConnectCount > connectsBefore {
			// The dial succeeded, so the run of consecutive failures restarts.
			attempts = 0
		}
		attempts++
		if attempts >= maxReconnectAttempts {
			c.logger.Error("reconnect attempt ceiling reached, exiting",
				zap.Int("attempts", attempts), zap.Error(sessionErr))
			return fmt.Errorf("ipc: exceeded %d reconnect attempts: %w", maxReconnectAttempts, sessionErr)
		}

		delay := jitter(backoffDelay(attempts))
		c.logger.Warn("connection failed, retrying",
			zap.Error(sessionErr), zap.Duration("delay", delay), zap.Int("attempt", attempts))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes delay = min(base * 2^(attempt-1), max), attempt >= 1.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffMax {
			return backoffMax
		}
	}
	if d > backoffMax {
		return backoffMax
	}
	return d
}

// jitter adds up to ±jitterFraction random perturbation to d.
func jitter(d time.Duration) time.Duration {
	delta := float64(d) * jitterFraction
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		return 0
	}
	return result
}

// session dials once, registers, and runs the heartbeat and listen loops
// concurrently until one of them returns (connection lost) or ctx is done.
func (c *Client) session(ctx context.Context) error {
	c.setState(Connecting)

	conn, err := net.Dial("unix", c.cfg.SocketPath)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("ipc: dial %s: %w", c.cfg.SocketPath, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.stats.ConnectCount++
	connectedAt := time.Now()
	c.mu.Unlock()
	c.setState(Connected)

	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.stats.DisconnectCount++
		c.stats.CumulativeConnected += time.Since(connectedAt)
		c.mu.Unlock()
		c.setState(Disconnected)
	}()

	// Registration is always the first message on a fresh connection.
	reg := NewMessage(TypeEvent, c.cfg.AgentName, map[string]any{
		"agent":        c.cfg.AgentName,
		"pid":          os.Getpid(),
		"version":      c.cfg.Version,
		"capabilities": c.cfg.Capabilities,
	})
	if !c.send(reg) {
		return errors.New("ipc: registration send failed")
	}

	errCh := make(chan error, 2)
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); errCh <- c.heartbeatLoop(loopCtx) }()
	go func() { defer wg.Done(); errCh <- c.listenLoop(loopCtx) }()

	var first error
	select {
	case first = <-errCh:
	case <-ctx.Done():
	}
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		c.logger.Warn("ipc loops did not join within timeout")
	}

	if ctx.Err() != nil {
		return nil
	}
	return first
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of connection metrics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// send marshals msg as one line of JSON and writes it to the current
// connection. It never panics or blocks the caller's loop on a dead
// connection — a missing connection or write error simply returns false.
func (c *Client) send(msg Message) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}

	line, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("ipc: failed to marshal outbound message", zap.Error(err))
		return false
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(line); err != nil {
		c.logger.Warn("ipc: send failed", zap.Error(err), zap.String("type", string(msg.Type)))
		return false
	}
	return true
}

// heartbeatLoop fires every heartbeatInterval while connected, sweeping
// ActiveTasks for deadline expiry beforehand. Five consecutive send failures
// terminate the loop so the outer session can reconnect.
func (c *Client) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.handler.Sweep(c.send)

			active, limit, busy := c.handler.Stats()
			status := "idle"
			if busy {
				status = "busy"
			}
			hb := NewMessage(TypeHeartbeat, c.cfg.AgentName, map[string]any{
				"agent":              c.cfg.AgentName,
				"pid":                os.Getpid(),
				"status":             status,
				"active_tasks":       active,
				"active_tasks_limit": limit,
				"uptime":             time.Since(c.startTime).Seconds(),
				"metrics":            metrics.Collect(ctx),
			})

			ok := c.send(hb)
			c.mu.Lock()
			if ok {
				c.stats.HeartbeatsSent++
				consecutiveFailures = 0
			} else {
				c.stats.HeartbeatsFailed++
				consecutiveFailures++
			}
			c.mu.Unlock()

			if !ok && consecutiveFailures >= maxLoopErrors {
				return fmt.Errorf("ipc: %d consecutive heartbeat failures", consecutiveFailures)
			}
		}
	}
}

// listenLoop reads newline-delimited JSON from the connection with a short
// read timeout so it can observe ctx cancellation promptly, and dispatches
// each parsed message to the appropriate handler.
func (c *Client) listenLoop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ipc: listen loop started without a connection")
	}

	reader := bufio.NewReader(conn)
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				return errors.New("ipc: connection closed by peer")
			}
			consecutiveErrors++
			c.logger.Warn("ipc: read error", zap.Error(err), zap.Int("consecutive", consecutiveErrors))
			if consecutiveErrors >= maxLoopErrors {
				return fmt.Errorf("ipc: %d consecutive read errors: %w", consecutiveErrors, err)
			}
			continue
		}
		consecutiveErrors = 0

		line = trimTrailingNewline(line)
		if line == "" {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			c.logger.Warn("ipc: malformed message, skipping", zap.Error(err))
			continue
		}
		if msg.ID == "" {
			c.logger.Warn("ipc: message missing id, skipping")
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case TypeTask:
		c.handler.HandleTask(msg, c.send)
	case TypePing:
		pong := Message{
			ID:        msg.ID,
			Type:      TypePong,
			Agent:     c.cfg.AgentName,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Data: map[string]any{
				"agent":  c.cfg.AgentName,
				"uptime": time.Since(c.startTime).Seconds(),
			},
		}
		c.send(pong)
	case TypePong:
		// One-way latency tracking: only meaningful when the orchestrator
		// echoes back a server_time we can diff against. Nothing to do if
		// it is absent.
		if raw, ok := msg.Data["server_time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				c.logger.Debug("pong latency", zap.Duration("latency", time.Since(t)))
			}
		}
	default:
		c.logger.Warn("ipc: unknown message type, skipping", zap.String("type", string(msg.Type)))
	}
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
