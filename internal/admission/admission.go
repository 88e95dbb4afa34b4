// Package admission bounds concurrent CPU-bound inference. Callers wait for
// one of a fixed number of slots, then hand their work to a worker pool and
// wait for it to finish; both waits share one deadline.
package admission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultCapacity = 10
	DefaultTimeout  = 30 * time.Second
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("admission controller closed")

// errDeadline marks expiry of the controller's own request timeout.
var errDeadline = errors.New("admission deadline exceeded")

// TimeoutError is returned when the controller's own deadline expires
// while waiting for a slot or for dispatched work.
type TimeoutError struct {
	Phase   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.Phase)
}
func (e *TimeoutError) StatusCode() int { return http.StatusGatewayTimeout }
func (e *TimeoutError) Temporary() bool { return true }

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// Config tunes the controller.
type Config struct {
	Capacity int
	// Workers sizes the execution pool; zero means Capacity.
	Workers int
	Timeout time.Duration
	Logger  *zerolog.Logger
}

type job struct {
	ctx     context.Context
	work    func(context.Context) error
	release func()
	done    chan error
}

// Controller is the inference admission controller.
type Controller struct {
	capacity int
	timeout  time.Duration
	sem      *semaphore.Weighted
	jobs     chan job
	quit     chan struct{}
	wg       sync.WaitGroup
	log      zerolog.Logger

	closeOnce sync.Once
	closed    atomic.Bool

	inUse    atomic.Int64
	waiting  atomic.Int64
	peak     atomic.Int64
	waits    atomic.Uint64
	timeouts atomic.Uint64
}

// New starts a controller and its workers.
func New(cfg Config) *Controller {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Workers <= 0 {
		cfg.Workers = cfg.Capacity
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Controller{
		capacity: cfg.Capacity,
		timeout:  cfg.Timeout,
		sem:      semaphore.NewWeighted(int64(cfg.Capacity)),
		jobs:     make(chan job),
		quit:     make(chan struct{}),
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	} else {
		c.log = zerolog.Nop()
	}
	slotsCapacity.Set(float64(cfg.Capacity))
	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}
	return c
}

// Capacity returns the number of slots.
func (c *Controller) Capacity() int { return c.capacity }

// Do runs work under an admission slot. The deadline covers the slot wait,
// the dispatch and the wait for the result. A slot is released exactly once
// when work returns; if the caller gives up first, the slot stays with the
// cancelled work until it unwinds. Errors from work are returned unchanged.
func (c *Controller) Do(ctx context.Context, work func(context.Context) error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errDeadline)
	defer cancel()

	if err := c.acquire(ctx); err != nil {
		return err
	}
	release := c.releaser()

	j := job{ctx: ctx, work: work, release: release, done: make(chan error, 1)}
	select {
	case c.jobs <- j:
	case <-c.quit:
		release()
		return ErrClosed
	case <-ctx.Done():
		release()
		return c.ctxErr(ctx, "a worker")
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		// The worker still owns the slot; it is freed when work returns.
		return c.ctxErr(ctx, "inference")
	}
}

func (c *Controller) acquire(ctx context.Context) error {
	if c.sem.TryAcquire(1) {
		c.noteAcquired()
		return nil
	}
	c.waits.Add(1)
	c.waiting.Add(1)
	waitingGauge.Inc()
	start := time.Now()
	err := c.sem.Acquire(ctx, 1)
	c.waiting.Add(-1)
	waitingGauge.Dec()
	waitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return c.ctxErr(ctx, "an admission slot")
	}
	c.noteAcquired()
	return nil
}

func (c *Controller) noteAcquired() {
	n := c.inUse.Add(1)
	inUseGauge.Inc()
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *Controller) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.inUse.Add(-1)
			inUseGauge.Dec()
			c.sem.Release(1)
		})
	}
}

// ctxErr distinguishes our deadline from the caller's own cancellation.
func (c *Controller) ctxErr(ctx context.Context, phase string) error {
	if errors.Is(context.Cause(ctx), errDeadline) {
		c.timeouts.Add(1)
		timeoutsTotal.WithLabelValues(phase).Inc()
		return &TimeoutError{Phase: phase, Timeout: c.timeout}
	}
	return ctx.Err()
}

func (c *Controller) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.quit:
			return
		case j := <-c.jobs:
			j.done <- c.run(j)
		}
	}
}

func (c *Controller) run(j job) (err error) {
	defer j.release()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("inference work panicked")
			err = fmt.Errorf("inference panicked: %v", r)
		}
	}()
	return j.work(j.ctx)
}

// Stats is a point-in-time view of the controller.
type Stats struct {
	Capacity   int
	InUse      int
	Waiting    int
	Peak       int
	TotalWaits uint64
	Timeouts   uint64
}

func (c *Controller) Stats() Stats {
	return Stats{
		Capacity:   c.capacity,
		InUse:      int(c.inUse.Load()),
		Waiting:    int(c.waiting.Load()),
		Peak:       int(c.peak.Load()),
		TotalWaits: c.waits.Load(),
		Timeouts:   c.timeouts.Load(),
	}
}

// Close stops the workers after in-flight work finishes. Subsequent Do
// calls return ErrClosed.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.quit)
		c.wg.Wait()
	})
}
