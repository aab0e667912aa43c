package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker runs one loop on its own goroutine with cooperative cancel.
type Worker struct {
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Loop returns the loop the worker drives.
func (w *Worker) Loop() *Loop { return w.loop }

// Done is closed when the worker's loop exits.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Result returns the loop result. Valid only after Done is closed.
func (w *Worker) Result() Result { return w.result }

// Stop flags the agent to halt and cancels its in-flight work.
func (w *Worker) Stop() {
	w.loop.State().RequestStop()
	w.cancel()
}

// Pool tracks the live workers of a scan, one per agent loop.
type Pool struct {
	mu      sync.Mutex
	workers map[string]*Worker
	log     *slog.Logger
}

// NewPool creates an empty worker pool.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		workers: make(map[string]*Worker),
		log:     logger,
	}
}

// Start launches a loop on a new goroutine and tracks it by agent id.
func (p *Pool) Start(ctx context.Context, loop *Loop) (*Worker, error) {
	id := loop.State().AgentID()

	p.mu.Lock()
	if _, exists := p.workers[id]; exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("agent %s already has a running worker", id)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w := &Worker{
		loop:   loop,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.workers[id] = w
	p.mu.Unlock()

	go func() {
		defer close(w.done)
		defer cancel()
		w.result = loop.Run(loopCtx)
		p.log.Info("agent loop exited",
			"agent_id", id,
			"status", w.result.Status,
			"iterations", w.result.Iterations)
	}()
	return w, nil
}

// Get returns the worker for an agent id.
func (p *Pool) Get(id string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[id]
	return w, ok
}

// Stop halts one agent's worker. Idempotent; unknown ids are ignored.
func (p *Pool) Stop(id string) {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// StopAll requests a stop on every worker and joins them within the
// timeout. Workers still running at expiry are abandoned; their count is
// returned.
func (p *Pool) StopAll(timeout time.Duration) int {
	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}

	deadline := time.Now().Add(timeout)
	remaining := 0
	for _, w := range workers {
		select {
		case <-w.Done():
		case <-time.After(time.Until(deadline)):
			remaining++
		}
	}
	if remaining > 0 {
		p.log.Warn("abandoned workers at shutdown", "count", remaining)
	}
	return remaining
}

// Len returns the number of tracked workers, exited ones included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
