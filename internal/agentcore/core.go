// Package agentcore glues the IPC transport to the analyzer pipeline: it owns
// task admission, the ActiveTask table, the per-task timeout sweep, and the
// consecutive-error cooldown. It implements ipc.TaskHandler.
package agentcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/ipc"
)

// TaskRequest is the typed form of an inbound task message's Data payload.
type TaskRequest struct {
	ID             string
	Scope          []string
	Context        map[string]any
	Output         string
	Config         map[string]any
	Mode           string
	TimeoutSeconds int
}

// TaskResult is what a Pipeline returns for a completed task.
type TaskResult struct {
	FindingsCount     int
	SeverityBreakdown map[string]int
	CategoryBreakdown map[string]int
	ToolsUsed         []string
	OutputFile        string
	AnalysisSummary   string
}

// Pipeline runs one task end-to-end. Implemented by internal/pipeline.
type Pipeline interface {
	Run(ctx context.Context, req TaskRequest) (TaskResult, error)
}

// Config holds Core's tunables, all named in §4.2/§4.8 of the specification.
type Config struct {
	AgentName            string
	MaxActiveTasks       int
	DefaultTaskTimeout   time.Duration
	MaxConsecutiveErrors int
	ErrorCooldown        time.Duration
}

type activeTask struct {
	req       TaskRequest
	startTime time.Time
	timeout   time.Duration
	cancel    context.CancelFunc
}

// Core implements ipc.TaskHandler, admitting, dispatching, and finalizing
// tasks against a Pipeline.
type Core struct {
	cfg      Config
	pipeline Pipeline
	logger   *zap.Logger

	mu                sync.Mutex
	active            map[string]*activeTask
	consecutiveErrors int
	cooldownUntil     time.Time
}

// New creates a Core bound to pipeline.
func New(cfg Config, pipeline Pipeline, logger *zap.Logger) *Core {
	if cfg.MaxActiveTasks <= 0 {
		cfg.MaxActiveTasks = 10
	}
	if cfg.DefaultTaskTimeout <= 0 {
		cfg.DefaultTaskTimeout = 300 * time.Second
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 10
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = 300 * time.Second
	}
	return &Core{
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logger.Named("agentcore"),
		active:   make(map[string]*activeTask),
	}
}

var _ ipc.TaskHandler = (*Core)(nil)

// HandleTask implements ipc.TaskHandler. It never blocks: admission is
// synchronous and cheap, but the pipeline run happens on its own goroutine.
func (c *Core) HandleTask(msg ipc.Message, send func(ipc.Message) bool) {
	req := parseTaskRequest(msg)

	c.mu.Lock()
	if remaining := c.cooldownRemainingLocked(); remaining > 0 {
		c.mu.Unlock()
		send(taskResponse(req.ID, c.cfg.AgentName, ipc.StatusFailed, map[string]any{
			"error":              "agent is in error cooldown",
			"error_type":         "admission",
			"cooldown_remaining": remaining.Seconds(),
		}, 0))
		return
	}
	if len(c.active) >= c.cfg.MaxActiveTasks {
		c.mu.Unlock()
		send(taskResponse(req.ID, c.cfg.AgentName, ipc.StatusRejected, map[string]any{
			"error":      "agent overloaded",
			"error_type": "admission",
		}, 0))
		return
	}

	timeout := c.cfg.DefaultTaskTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	taskCtx, cancel := context.WithTimeout(context.Background(), timeout)
	c.active[req.ID] = &activeTask{req: req, startTime: time.Now(), timeout: timeout, cancel: cancel}
	c.mu.Unlock()

	go c.run(taskCtx, cancel, req, send)
}

// run executes the task on the pipeline and emits exactly one terminal
// response, per the task lifecycle state machine (§4.7).
func (c *Core) run(ctx context.Context, cancel context.CancelFunc, req TaskRequest, send func(ipc.Message) bool) {
	defer cancel()
	start := time.Now()

	result, err := c.pipeline.Run(ctx, req)
	durationMs := int(time.Since(start).Milliseconds())

	c.mu.Lock()
	_, stillActive := c.active[req.ID]
	delete(c.active, req.ID)
	c.mu.Unlock()
	if !stillActive {
		// The heartbeat sweep already finalized this task as a timeout.
		return
	}

	if err != nil {
		c.recordFailure()
		send(taskResponse(req.ID, c.cfg.AgentName, ipc.StatusFailed, map[string]any{
			"error":      err.Error(),
			"error_type": "task",
		}, durationMs))
		return
	}

	c.recordSuccess()
	send(taskResponse(req.ID, c.cfg.AgentName, ipc.StatusDone, map[string]any{
		"findings_count":     result.FindingsCount,
		"severity_breakdown": result.SeverityBreakdown,
		"category_breakdown": result.CategoryBreakdown,
		"tools_used":         result.ToolsUsed,
		"output_file":        result.OutputFile,
		"analysis_summary":   result.AnalysisSummary,
	}, durationMs))
}

// Sweep implements ipc.TaskHandler. It is called once per heartbeat tick,
// before the heartbeat is built, to finalize any ActiveTask past its
// deadline with a synthetic timeout response.
func (c *Core) Sweep(send func(ipc.Message) bool) {
	now := time.Now()

	c.mu.Lock()
	var expired []*activeTask
	for id, t := range c.active {
		if now.Sub(t.startTime) > t.timeout {
			expired = append(expired, t)
			delete(c.active, id)
		}
	}
	c.mu.Unlock()

	for _, t := range expired {
		t.cancel()
		send(taskResponse(t.req.ID, c.cfg.AgentName, ipc.StatusTimeout, map[string]any{
			"error":      fmt.Sprintf("task exceeded %s timeout", t.timeout),
			"error_type": "tool",
		}, int(now.Sub(t.startTime).Milliseconds())))
	}
}

// Stats implements ipc.TaskHandler.
func (c *Core) Stats() (activeTasks, activeTasksLimit int, busy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active), c.cfg.MaxActiveTasks, len(c.active) > 0
}

func (c *Core) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
}

func (c *Core) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors++
	if c.consecutiveErrors >= c.cfg.MaxConsecutiveErrors {
		c.cooldownUntil = time.Now().Add(c.cfg.ErrorCooldown)
		c.logger.Warn("entering error cooldown",
			zap.Int("consecutive_errors", c.consecutiveErrors),
			zap.Duration("cooldown", c.cfg.ErrorCooldown))
	}
}

// cooldownRemainingLocked must be called with c.mu held.
func (c *Core) cooldownRemainingLocked() time.Duration {
	if c.cooldownUntil.IsZero() {
		return 0
	}
	remaining := time.Until(c.cooldownUntil)
	if remaining <= 0 {
		c.cooldownUntil = time.Time{}
		c.consecutiveErrors = 0
		return 0
	}
	return remaining
}

func parseTaskRequest(msg ipc.Message) TaskRequest {
	req := TaskRequest{ID: msg.ID}
	if msg.Data == nil {
		return req
	}
	if scope, ok := msg.Data["scope"].([]any); ok {
		for _, s := range scope {
			if str, ok := s.(string); ok {
				req.Scope = append(req.Scope, str)
			}
		}
	}
	if ctxMap, ok := msg.Data["context"].(map[string]any); ok {
		req.Context = ctxMap
	}
	if out, ok := msg.Data["output"].(string); ok {
		req.Output = out
	}
	if cfg, ok := msg.Data["config"].(map[string]any); ok {
		req.Config = cfg
	}
	if mode, ok := msg.Data["mode"].(string); ok {
		req.Mode = mode
	}
	if secs, ok := msg.Data["timeout_seconds"].(float64); ok {
		req.TimeoutSeconds = int(secs)
	}
	return req
}

func taskResponse(id, agent string, status ipc.TaskStatus, results map[string]any, durationMs int) ipc.Message {
	return ipc.Message{
		ID:        id,
		Type:      ipc.TypeTask,
		Agent:     agent,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: map[string]any{
			"status":      string(status),
			"results":     results,
			"duration_ms": durationMs,
			"agent":       agent,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		},
	}
}
