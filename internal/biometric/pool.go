package biometric

import (
	contextPkg "FaceVerification/pkg/context"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxConcurrent  = 10
	DefaultRequestTimeout = 30 * time.Second
)

// Handler processes one request inside a worker.
type Handler func(ctx context.Context, req Request) (Outcome, error)

// Observer is notified once per finished request.
type Observer func(kind Kind, elapsed time.Duration, err error)

type Stats struct {
	QueueLength         int     `json:"queue_length"`
	ActiveWorkers       int     `json:"active_workers"`
	MaxConcurrent       int     `json:"max_concurrent"`
	TotalProcessed      uint64  `json:"total_processed"`
	TotalFailed         uint64  `json:"total_failed"`
	AverageProcessingMs float64 `json:"average_processing_ms"`
	PeakConcurrent      int     `json:"peak_concurrent"`
}

type PoolConfig struct {
	MaxConcurrent  int
	RequestTimeout time.Duration
	Observer       Observer
}

type task struct {
	ctx  context.Context
	req  Request
	done chan result
}

type result struct {
	outcome Outcome
	err     error
}

// Pool admits requests FIFO and runs at most MaxConcurrent of them at once.
// Completion order across requests is not guaranteed.
type Pool struct {
	log      *logrus.Logger
	handler  Handler
	observer Observer
	max      int
	timeout  time.Duration
	sem      *semaphore.Weighted

	mu      sync.Mutex
	queue   []*task
	active  int
	peak    int
	total   uint64
	failed  uint64
	avgMs   float64
	closed  bool
	wake    chan struct{}
	stop    context.CancelFunc
	stopCtx context.Context
	workers sync.WaitGroup
	loop    sync.WaitGroup
}

func NewPool(log *logrus.Logger, handler Handler, cfg PoolConfig) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	stopCtx, stop := context.WithCancel(context.Background())
	p := &Pool{
		log:      log,
		handler:  handler,
		observer: cfg.Observer,
		max:      cfg.MaxConcurrent,
		timeout:  cfg.RequestTimeout,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		wake:     make(chan struct{}, 1),
		stop:     stop,
		stopCtx:  stopCtx,
	}

	p.loop.Add(1)
	go p.schedule()

	return p
}

// Submit enqueues req and waits for its result. If ctx ends while the request
// is still pending it is removed from the queue.
func (p *Pool) Submit(ctx context.Context, req Request) (Outcome, error) {
	t := &task{ctx: ctx, req: req, done: make(chan result, 1)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Outcome{}, ErrPoolClosed
	}
	p.queue = append(p.queue, t)
	p.mu.Unlock()

	p.signal()

	select {
	case r := <-t.done:
		return r.outcome, r.err
	case <-ctx.Done():
		if p.remove(t) {
			return Outcome{}, ctx.Err()
		}
		select {
		case r := <-t.done:
			return r.outcome, r.err
		default:
			return Outcome{}, ctx.Err()
		}
	}
}

// ClearQueue rejects every pending request with ErrQueueCleared. Requests
// already running are left alone.
func (p *Pool) ClearQueue() int {
	p.mu.Lock()
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, t := range pending {
		t.done <- result{err: ErrQueueCleared}
	}

	if len(pending) > 0 {
		p.log.WithFields(logrus.Fields{
			"cleared": len(pending),
		}).Warn("Verification queue cleared")
	}

	return len(pending)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		QueueLength:         len(p.queue),
		ActiveWorkers:       p.active,
		MaxConcurrent:       p.max,
		TotalProcessed:      p.total,
		TotalFailed:         p.failed,
		AverageProcessingMs: p.avgMs,
		PeakConcurrent:      p.peak,
	}
}

// Shutdown stops admission, rejects pending work and waits for running workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.ClearQueue()
	p.stop()
	p.loop.Wait()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// schedule blocks on the wake channel while there is nothing to do, and on
// the semaphore while every worker slot is taken.
func (p *Pool) schedule() {
	defer p.loop.Done()

	for {
		select {
		case <-p.wake:
		case <-p.stopCtx.Done():
			return
		}

		for {
			if err := p.sem.Acquire(p.stopCtx, 1); err != nil {
				return
			}

			t := p.pop()
			if t == nil {
				p.sem.Release(1)
				break
			}

			p.start(t)
		}
	}
}

func (p *Pool) pop() *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 {
		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]

		if err := t.ctx.Err(); err != nil {
			t.done <- result{err: err}
			continue
		}

		p.active++
		if p.active > p.peak {
			p.peak = p.active
		}
		return t
	}

	return nil
}

func (p *Pool) remove(target *task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, t := range p.queue {
		if t == target {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pool) start(t *task) {
	p.workers.Add(1)

	go func() {
		defer p.workers.Done()
		defer p.sem.Release(1)

		started := time.Now()

		// In-flight work is not cancelled by the caller going away; only the
		// per-request deadline bounds it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), p.timeout)
		outcome, err := p.run(ctx, t.req)
		cancel()

		elapsed := time.Since(started)
		p.finish(elapsed, err)

		if p.observer != nil {
			p.observer(t.req.Kind(), elapsed, err)
		}

		if err != nil && !isDomainFailure(err) {
			p.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(t.ctx),
				"kind":       t.req.Kind().String(),
				"error":      err.Error(),
			}).Error("Verification worker failed")
		}

		t.done <- result{outcome: outcome, err: err}
	}()
}

func (p *Pool) run(ctx context.Context, req Request) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"panic":      r,
			}).Error("Verification worker panicked")
			outcome, err = Outcome{}, ErrVerification
		}
	}()

	return p.handler(ctx, req)
}

func (p *Pool) finish(elapsed time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--
	p.total++
	if err != nil {
		p.failed++
	}

	ms := float64(elapsed.Microseconds()) / 1000
	p.avgMs += (ms - p.avgMs) / float64(p.total)
}

func isDomainFailure(err error) bool {
	return errors.Is(err, ErrNoFaceDetected) ||
		errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrLivenessFailed)
}
