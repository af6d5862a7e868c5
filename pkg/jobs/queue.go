package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is multiplied by the attempt number before each retry.
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
// Jobs are best effort: anything still buffered when the queue stops is
// dropped and logged.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	// wg tracks workers, retry timers and senders blocked on a full buffer.
	wg sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	// pending counts accepted jobs that have not finished, including
	// retries. idle is closed whenever pending drops to zero.
	pending int
	idle    chan struct{}
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	idle := make(chan struct{})
	close(idle)
	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		idle:       idle,
	}
}

// Start begins worker consumption. Safe to call once; a stopped queue
// cannot be restarted.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers, waits for them to exit and drops whatever is still
// buffered. Enqueue fails afterwards.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	dropped := q.drain()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name, "dropped", dropped)
}

// Shutdown waits until every accepted job has finished, including retries,
// or ctx is done, and then stops the workers.
func (q *Queue) Shutdown(ctx context.Context) error {
	var err error
	for err == nil {
		q.mu.Lock()
		idle, pending := q.idle, q.pending
		q.mu.Unlock()
		if pending == 0 {
			break
		}
		select {
		case <-idle:
		case <-ctx.Done():
			err = fmt.Errorf("queue %s: %w", q.name, ctx.Err())
		}
	}
	q.Stop()
	return err
}

// Pending reports how many accepted jobs have not finished yet.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Enqueue pushes a job onto the queue, assigning an ID when it has none.
func (q *Queue) Enqueue(job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	return q.push(job, true)
}

// push hands job to the workers. accept counts it as a newly pending job;
// retries are already counted.
func (q *Queue) push(job Job, accept bool) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.stopped {
		q.mu.Unlock()
		return fmt.Errorf("queue %s stopped", q.name)
	}
	if accept {
		if q.pending == 0 {
			q.idle = make(chan struct{})
		}
		q.pending++
	}
	// Stop waits for this send, so nothing lands in the buffer after the drain.
	q.wg.Add(1)
	ctx := q.ctx
	q.mu.Unlock()
	defer q.wg.Done()

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		if accept {
			q.finish()
		}
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	}
}

// finish marks one pending job as done.
func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

func (q *Queue) drain() int {
	dropped := 0
	for {
		select {
		case job := <-q.jobs:
			q.logger.Sugar().Warnw("dropping queued job", "queue", q.name, "job_id", job.ID, "type", job.Type)
			q.finish()
			dropped++
		default:
			return dropped
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.finish()
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		q.finish()
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	// The calling worker holds a wg slot, so this Add cannot race Stop's Wait.
	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		timer := time.NewTimer(q.retryDelay * time.Duration(j.Attempt))
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.finish()
		case <-timer.C:
			if err := q.push(j, false); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
				q.finish()
			}
		}
	}(job)
}
