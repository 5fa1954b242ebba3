// Package worker drains the bounded queue and persists each event,
// batching writes per §4.4 and respecting a drain timeout on shutdown.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/events"
	"github.com/sidecar-io/sidecar/internal/failopen"
	"github.com/sidecar-io/sidecar/internal/metrics"
	"github.com/sidecar-io/sidecar/internal/persistence"
	"github.com/sidecar-io/sidecar/internal/queue"
)

const (
	dequeueTimeout = 500 * time.Millisecond
	flushPollEvery = 10 * time.Millisecond
)

// Pool is the fixed-size set of goroutines that dequeue events, dispatch
// them to the persistence batcher, and report metrics. Its size is the
// Workers config field, one of the fields that requires a process restart
// to change (§6) — Pool does not itself watch for a Workers change.
type Pool struct {
	queue    *queue.Bounded
	batcher  *persistence.Batcher
	guard    *failopen.Guard
	metrics  *metrics.Registry
	snapshot *config.Snapshot
	logger   *slog.Logger

	batchMu sync.Mutex
	lastAdd time.Time

	wg sync.WaitGroup
}

// New constructs a Pool over the given queue, writing batches through
// batcher.
func New(
	q *queue.Bounded,
	batcher *persistence.Batcher,
	guard *failopen.Guard,
	reg *metrics.Registry,
	snapshot *config.Snapshot,
	logger *slog.Logger,
) *Pool {
	return &Pool{
		queue:    q,
		batcher:  batcher,
		guard:    guard,
		metrics:  reg,
		snapshot: snapshot,
		logger:   logger,
		lastAdd:  time.Now(),
	}
}

// Run starts Workers goroutines plus a linger-flush goroutine, and blocks
// until ctx is canceled. On cancellation it stops dequeueing, flushes the
// outstanding batch within shutdown.drain_timeout_ms, and returns.
func (p *Pool) Run(ctx context.Context) {
	workers := p.snapshot.Load().Workers

	p.wg.Add(workers + 1)
	for i := 0; i < workers; i++ {
		go p.runWorker(ctx)
	}
	go p.runLingerFlusher(ctx)

	p.wg.Wait()

	p.drain()
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e, ok := p.queue.Get(dequeueTimeout)
		if !ok {
			continue
		}

		p.process(ctx, e)
	}
}

func (p *Pool) process(ctx context.Context, e events.Event) {
	var flushNow bool

	p.guard.Run("worker_dispatch", func() error {
		p.batchMu.Lock()
		flushNow = p.batcher.Add(&e)
		p.lastAdd = time.Now()
		p.batchMu.Unlock()
		return nil
	})

	if flushNow {
		p.flush(ctx)
	}
}

func (p *Pool) runLingerFlusher(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(flushPollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.metrics != nil {
				p.metrics.QueueSize.Set(float64(p.queue.Size()))
				p.metrics.QueueUtilization.Set(p.queue.Utilization())
			}

			p.batchMu.Lock()
			pending := p.batcher.Pending()
			elapsed := pending > 0 && p.batcher.LingerElapsed(p.lastAdd)
			p.batchMu.Unlock()

			if elapsed {
				p.flush(ctx)
			}
		}
	}
}

func (p *Pool) flush(ctx context.Context) {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()
	p.batcher.Flush(ctx)
}

// drain flushes whatever remains in the batch after Run's goroutines have
// stopped, bounded by shutdown.drain_timeout_ms.
func (p *Pool) drain() {
	drainTimeout := time.Duration(p.snapshot.Load().Shutdown.DrainTimeoutMs) * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if p.logger != nil {
		p.logger.Info("draining worker pool", slog.Int("pending", p.batcher.Pending()))
	}

	p.flush(ctx)
}
