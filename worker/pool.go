package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tasker/backoff"
	"github.com/xraph/tasker/ext"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

// QueueManager controls per-queue rate limiting and concurrency. The pool
// calls Acquire for each queue before polling, Commit for the queue an
// invocation was dequeued from, and Release once that slot is done.
type QueueManager interface {
	Acquire(queue string) bool
	Commit(queue string)
	Release(queue string)
}

// Pool manages a set of concurrent worker goroutines that poll for
// invocations and execute them through the Executor.
type Pool struct {
	store        invocation.Store
	executor     *Executor
	extensions   *ext.Registry
	concurrency  int
	queues       []string
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	// Queue manager (optional).
	queueManager QueueManager

	// errBackoff paces polling while the store keeps failing.
	errBackoff backoff.Strategy

	stopCh            chan struct{}
	wg                sync.WaitGroup
	mu                sync.Mutex
	running           bool
	activeInvocations map[string]context.CancelFunc
	activeMu          sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolQueues sets the queues the pool will poll.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithPollInterval sets how often idle workers poll for new invocations.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithQueueManager sets the queue manager for rate limiting and
// concurrency control.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// WithDequeueBackoff sets how long workers wait after consecutive dequeue
// failures. The default is backoff.Default of the poll interval.
func WithDequeueBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.errBackoff = s }
}

// NewPool creates a worker pool.
func NewPool(
	store invocation.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:             store,
		executor:          executor,
		extensions:        extensions,
		concurrency:       10,
		queues:            []string{"default"},
		pollInterval:      time.Second,
		workerID:          id.NewWorkerID(),
		logger:            logger,
		stopCh:            make(chan struct{}),
		activeInvocations: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.errBackoff == nil {
		p.errBackoff = backoff.Default(p.pollInterval)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If ctx ends first, active invocations are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active invocations")
		p.cancelActiveInvocations()
		p.wg.Wait()
	}

	return nil
}

// dequeueLoop is run by each worker goroutine.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	failures := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		queues := p.acquireQueues()
		if len(queues) == 0 {
			p.sleep()
			continue
		}

		invs, err := p.store.Dequeue(context.Background(), queues, p.workerID, 1)
		if err != nil {
			p.releaseQueues(queues, "")
			failures++
			delay := p.errBackoff.Delay(failures)
			p.logger.Error("dequeue error",
				slog.String("error", err.Error()),
				slog.Int("failures", failures),
				slog.Duration("retry_in", delay),
			)
			p.wait(delay)
			continue
		}
		failures = 0
		if len(invs) == 0 {
			p.releaseQueues(queues, "")
			p.sleep()
			continue
		}

		inv := invs[0]
		p.releaseQueues(queues, inv.Queue)
		if p.queueManager != nil {
			p.queueManager.Commit(inv.Queue)
		}

		p.run(inv)

		if p.queueManager != nil {
			p.queueManager.Release(inv.Queue)
		}
	}
}

func (p *Pool) run(inv *invocation.Invocation) {
	p.extensions.EmitInvocationStarted(context.Background(), inv)

	ctx, cancel := context.WithCancel(context.Background())
	p.track(inv.ID.String(), cancel)
	defer func() {
		p.untrack(inv.ID.String())
		cancel()
	}()

	if err := p.executor.Execute(ctx, inv); err != nil {
		p.logger.Debug("invocation execution failed",
			slog.String("invocation_id", inv.ID.String()),
			slog.String("task", inv.TaskName),
			slog.String("error", err.Error()),
		)
	}
}

// acquireQueues returns the queues whose limits allow another invocation.
func (p *Pool) acquireQueues() []string {
	if p.queueManager == nil {
		return p.queues
	}
	out := make([]string, 0, len(p.queues))
	for _, q := range p.queues {
		if p.queueManager.Acquire(q) {
			out = append(out, q)
		}
	}
	return out
}

// releaseQueues releases every acquired queue except keep.
func (p *Pool) releaseQueues(queues []string, keep string) {
	if p.queueManager == nil {
		return
	}
	for _, q := range queues {
		if q == keep {
			keep = ""
			continue
		}
		p.queueManager.Release(q)
	}
}

func (p *Pool) sleep() { p.wait(p.pollInterval) }

func (p *Pool) wait(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stopCh:
	}
}

func (p *Pool) track(invID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeInvocations[invID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrack(invID string) {
	p.activeMu.Lock()
	delete(p.activeInvocations, invID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveInvocations() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for invID, cancel := range p.activeInvocations {
		p.logger.Warn("cancelling active invocation", slog.String("invocation_id", invID))
		cancel()
	}
}
