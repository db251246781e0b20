// Package poller refreshes quotes on a fixed cadence and publishes each
// merged snapshot to subscribers.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"StockPulse/internal/logger"
)

const (
	listInterval   = 30 * time.Second
	detailInterval = 15 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("poller: already started")
	ErrStopped        = errors.New("poller: stopped")
)

type options struct {
	logger arbor.ILogger
	now    func() time.Time
}

type Option func(*options)

func WithLogger(l arbor.ILogger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// runner owns the cron schedule of one poller. Ticks never overlap and all
// of them share a context that Stop cancels.
type runner struct {
	interval time.Duration
	logger   arbor.ILogger

	mu       sync.Mutex
	cron     *cron.Cron
	cancel   context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func (r *runner) start(ctx context.Context, tick func(context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.cron != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	cl := logger.Cron(r.logger)
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		if ctx.Err() == nil {
			tick(ctx)
		}
	}))

	c := cron.New(cron.WithLogger(cl))
	if _, err := c.AddJob(fmt.Sprintf("@every %s", r.interval), job); err != nil {
		cancel()
		return fmt.Errorf("poller: schedule: %w", err)
	}
	r.cron, r.cancel = c, cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job.Run()
	}()
	c.Start()
	r.logger.Debug().Str("interval", r.interval.String()).Msg("Poller started")
	return nil
}

// stop cancels in-flight requests and waits for the running tick. Safe to
// call more than once and before start.
func (r *runner) stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		c, cancel := r.cron, r.cancel
		r.mu.Unlock()

		if c == nil {
			return
		}
		cancel()
		<-c.Stop().Done()
		r.wg.Wait()
		r.logger.Debug().Msg("Poller stopped")
	})
}

// hub fans snapshots out to subscribers. Each subscriber holds at most the
// latest undelivered snapshot.
type hub[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[chan T]struct{})}
}

func (h *hub[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *hub[T]) publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// Replace the stale pending value.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
