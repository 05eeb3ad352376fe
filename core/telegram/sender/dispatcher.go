// Package sender runs outbound Bot API calls on a small worker pool so
// handlers return before the reply is delivered.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/postbot/core/logger"
	"github.com/m3rciful/postbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the queue has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the outbound dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize int
	// Workers is the number of concurrent senders. One worker keeps replies
	// in the order they were queued.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one job including retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// Job is one outbound call. Send must be safe to repeat when retries are enabled.
type Job struct {
	Action   string
	Endpoint string
	Send     func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher executes jobs asynchronously, retrying transient network errors.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	wg     sync.WaitGroup

	failed atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queue: make(chan queued, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for q := range d.queue {
				d.process(q)
			}
		}()
	}
	return d
}

// Enqueue schedules j. It never blocks: a full queue yields ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Send == nil {
		return errors.New("telegram sender: job without send function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- queued{ctx: ctx, Job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Failed returns the number of jobs that ended in an error.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(q queued) {
	// The update context may already be cancelled; the reply still goes out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, q.Job)
	attrs := []slog.Attr{
		slog.String("action", q.Action),
		slog.String("endpoint", q.Endpoint),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	}
	if err == nil {
		logger.Debug(q.ctx, component, "send.ok", attrs...)
		return
	}
	d.failed.Add(1)
	attrs = append(attrs,
		slog.String("status", "fail"),
		slog.String("err", logger.Redact(err)),
		slog.String("err_kind", Classify(err)),
	)
	logger.Error(q.ctx, component, "send.fail", attrs...)
}

// attempt runs j until it succeeds, fails permanently, or runs out of retries or time.
func (d *Dispatcher) attempt(ctx context.Context, j Job) (int, error) {
	total := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		err := j.Send()
		if err == nil || n == total || !netutil.Retryable(err) {
			return n, err
		}
		delay := netutil.Backoff(d.opts.RetryBackoff, n)
		logger.Debug(ctx, component, "send.retry",
			slog.String("action", j.Action),
			slog.Int("attempt", n),
			slog.Duration("backoff", delay),
		)
		if werr := netutil.Sleep(ctx, delay); werr != nil {
			return n, errors.Join(err, werr)
		}
	}
}
