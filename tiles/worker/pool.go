package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Pool struct {
	tasks   chan Task
	quit    chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

type Task struct {
	Ctx  context.Context
	Name string
	Work func(ctx context.Context) error
}

// NewPool starts maxWorkers goroutines fed by a queue of queueSize tasks.
// Every task runs with its own timeout when timeout > 0.
func NewPool(maxWorkers, queueSize int, timeout time.Duration) *Pool {
	p := &Pool{
		tasks:   make(chan Task, max(queueSize, 1)),
		quit:    make(chan struct{}),
		timeout: timeout,
	}

	for i := 0; i < max(maxWorkers, 1); i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := task.Work(ctx); err != nil {
		slog.Debug("worker task failed", "task", task.Name, "error", err)
	}
}

// Submit queues a task without blocking. It reports false when the queue is
// full or the pool has been shut down.
func (p *Pool) Submit(task Task) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops the workers and waits for running tasks. Queued tasks are dropped.
func (p *Pool) Shutdown() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}
