// Package workers runs background jobs on a fixed pool of goroutines with a
// bounded queue and per-job retry.
package workers

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is one unit of work. Run is retried until it succeeds or the pool's
// MaxAttempts is reached.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per attempt.
	Backoff    time.Duration
	JobTimeout time.Duration
	// OnDone is called once per job with the final error (nil on success).
	OnDone func(job Job, attempts int, err error)
}

type Pool struct {
	opts     Options
	jobQueue chan Job
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(opts Options) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Second
	}

	p := &Pool{
		opts:     opts,
		jobQueue: make(chan Job, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobQueue {
		p.Execute(job)
	}
}

// TrySubmit enqueues job without blocking. It returns false when the queue
// is full or the pool is closed.
func (p *Pool) TrySubmit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// Execute runs job in the calling goroutine with the pool's retry policy.
func (p *Pool) Execute(job Job) error {
	var err error
	attempts := 0
	delay := p.opts.Backoff

	for attempts < p.opts.MaxAttempts {
		attempts++

		ctx, cancel := context.WithTimeout(context.Background(), p.opts.JobTimeout)
		err = job.Run(ctx)
		cancel()

		if err == nil {
			break
		}

		log.WithError(err).WithFields(log.Fields{
			"job":     job.Name,
			"attempt": attempts,
		}).Warn("workers: job attempt failed")

		if attempts < p.opts.MaxAttempts && delay > 0 {
			time.Sleep(delay)
			delay *= 2
		}
	}

	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"job":      job.Name,
			"attempts": attempts,
		}).Error("workers: job failed permanently")
	}

	if p.opts.OnDone != nil {
		p.opts.OnDone(job, attempts, err)
	}
	return err
}

// Close stops accepting jobs, drains the queue and waits for workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.wg.Wait()
}
