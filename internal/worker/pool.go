// Package worker implements the bounded goroutine pool the frontend
// dispatcher uses for optional concurrent query handling (§5). A fixed
// set of workers drains a buffered job queue until the pool is closed;
// submission never blocks the caller.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrQueueFull indicates the job queue had no room for a new job.
	ErrQueueFull = errors.New("job queue is full")
)

// Job is a unit of work submitted to a Pool.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Config holds worker pool configuration.
type Config struct {
	// Workers is the number of goroutines draining the queue. Zero
	// selects runtime.NumCPU() * 4.
	Workers int

	// QueueSize bounds how many submitted jobs may wait for a free
	// worker. Zero selects Workers * 100.
	QueueSize int

	// PanicHandler, if set, receives the recovered value when a job
	// panics instead of the worker goroutine dying.
	PanicHandler func(interface{})
}

type jobWrapper struct {
	job Job
	ctx context.Context
}

// Pool is a bounded worker pool that prevents one burst of queries
// from spawning unbounded goroutines.
type Pool struct {
	workers      int
	queue        chan *jobWrapper
	wg           sync.WaitGroup
	closed       atomic.Bool
	panicHandler func(interface{})
}

// NewPool starts Config.Workers goroutines draining a queue of
// Config.QueueSize capacity.
func NewPool(cfg Config) *Pool {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU() * 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = cfg.Workers * 100
	}

	p := &Pool{
		workers:      cfg.Workers,
		queue:        make(chan *jobWrapper, cfg.QueueSize),
		panicHandler: cfg.PanicHandler,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for wrapper := range p.queue {
		p.executeJob(wrapper)
	}
}

func (p *Pool) executeJob(wrapper *jobWrapper) {
	defer func() {
		if r := recover(); r != nil && p.panicHandler != nil {
			p.panicHandler(r)
		}
	}()
	wrapper.job.Execute(wrapper.ctx)
}

// SubmitAsync enqueues job and returns without waiting for it to run.
// It returns ErrPoolClosed once Close has been called and ErrQueueFull
// if the queue has no free slot.
func (p *Pool) SubmitAsync(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case p.queue <- &jobWrapper{job: job, ctx: ctx}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting new jobs and waits for every queued and
// in-flight job to finish.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return ErrPoolClosed
	}
	close(p.queue)
	p.wg.Wait()
	return nil
}
