package agentcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/ipc"
)

type fakePipeline struct {
	mu       sync.Mutex
	delay    time.Duration
	err      error
	calls    int
	blockTil chan struct{}
}

func (p *fakePipeline) Run(ctx context.Context, req TaskRequest) (TaskResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.blockTil != nil {
		select {
		case <-p.blockTil:
		case <-ctx.Done():
			return TaskResult{}, ctx.Err()
		}
	} else if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return TaskResult{}, ctx.Err()
		}
	}
	if p.err != nil {
		return TaskResult{}, p.err
	}
	return TaskResult{FindingsCount: 3, ToolsUsed: []string{"ruff"}}, nil
}

func taskMsg(id string) ipc.Message {
	return ipc.Message{ID: id, Type: ipc.TypeTask, Data: map[string]any{"scope": []any{"."}}}
}

func collector() (func(ipc.Message) bool, func() []ipc.Message) {
	var mu sync.Mutex
	var got []ipc.Message
	send := func(m ipc.Message) bool {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
		return true
	}
	read := func() []ipc.Message {
		mu.Lock()
		defer mu.Unlock()
		return append([]ipc.Message(nil), got...)
	}
	return send, read
}

func TestHandleTaskSuccessEmitsDoneOnce(t *testing.T) {
	p := &fakePipeline{}
	c := New(Config{MaxActiveTasks: 5}, p, zap.NewNop())

	send, read := collector()
	c.HandleTask(taskMsg("t1"), send)

	require.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 5*time.Millisecond)
	msg := read()[0]
	assert.Equal(t, ipc.StatusDone, ipc.TaskStatus(msg.Data["status"].(string)))
}

func TestHandleTaskRejectsWhenOverloaded(t *testing.T) {
	p := &fakePipeline{blockTil: make(chan struct{})}
	defer close(p.blockTil)
	c := New(Config{MaxActiveTasks: 1}, p, zap.NewNop())

	send, read := collector()
	c.HandleTask(taskMsg("t1"), send)
	c.HandleTask(taskMsg("t2"), send)

	require.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, string(ipc.StatusRejected), read()[0].Data["status"])
}

func TestSweepFinalizesExpiredTask(t *testing.T) {
	p := &fakePipeline{blockTil: make(chan struct{})}
	defer close(p.blockTil)
	c := New(Config{MaxActiveTasks: 5}, p, zap.NewNop())

	msg := taskMsg("t1")
	msg.Data["timeout_seconds"] = float64(0)
	send, read := collector()
	c.HandleTask(msg, send)

	c.mu.Lock()
	if at, ok := c.active["t1"]; ok {
		at.startTime = time.Now().Add(-time.Hour)
	}
	c.mu.Unlock()

	c.Sweep(send)
	require.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, string(ipc.StatusTimeout), read()[0].Data["status"])
}

func TestCooldownAfterConsecutiveFailures(t *testing.T) {
	p := &fakePipeline{err: assert.AnError}
	c := New(Config{MaxActiveTasks: 5, MaxConsecutiveErrors: 2, ErrorCooldown: time.Minute}, p, zap.NewNop())

	send, read := collector()
	c.HandleTask(taskMsg("t1"), send)
	require.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 5*time.Millisecond)
	c.HandleTask(taskMsg("t2"), send)
	require.Eventually(t, func() bool { return len(read()) == 2 }, time.Second, 5*time.Millisecond)

	send3, read3 := collector()
	c.HandleTask(taskMsg("t3"), send3)
	require.Eventually(t, func() bool { return len(read3()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, string(ipc.StatusFailed), read3()[0].Data["status"])
	assert.Contains(t, read3()[0].Data["results"].(map[string]any)["error"], "cooldown")
}
