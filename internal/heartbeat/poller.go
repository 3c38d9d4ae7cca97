// Package heartbeat drives the host keep-alive and the member refresh from one
// external tick source, each on its own countdown.
package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultPollInterval      = 1100 * time.Millisecond
	DefaultCallTimeout       = 10 * time.Second
)

// Target is the session the poller keeps alive and refreshed.
type Target interface {
	Hosting() bool
	Tracking() bool
	Heartbeat(ctx context.Context) error
	Poll(ctx context.Context) error
}

type Options struct {
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	CallTimeout       time.Duration
	Logger            *zap.Logger
}

// countdown fires when it drops below zero and then restarts from its interval.
type countdown struct {
	interval time.Duration
	left     time.Duration
	inflight atomic.Bool
}

func (c *countdown) advance(elapsed time.Duration) bool {
	c.left -= elapsed
	if c.left >= 0 {
		return false
	}
	c.left = c.interval
	return true
}

type Poller struct {
	target      Target
	callTimeout time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	heartbeat countdown
	poll      countdown

	wg sync.WaitGroup
}

func New(target Target, opts Options) *Poller {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{
		target:      target,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger.Named("heartbeat"),
		heartbeat:   countdown{interval: opts.HeartbeatInterval, left: opts.HeartbeatInterval},
		poll:        countdown{interval: opts.PollInterval, left: opts.PollInterval},
	}
}

// Tick advances both countdowns by elapsed and dispatches whatever fired.
// A countdown only runs while its concern applies: the heartbeat while
// hosting, the poll while a lobby is joined.
func (p *Poller) Tick(ctx context.Context, elapsed time.Duration) (heartbeat, poll bool) {
	hosting, tracking := p.target.Hosting(), p.target.Tracking()

	p.mu.Lock()
	if hosting {
		heartbeat = p.heartbeat.advance(elapsed)
	}
	if tracking {
		poll = p.poll.advance(elapsed)
	}
	p.mu.Unlock()

	if heartbeat {
		p.dispatch(ctx, "heartbeat", &p.heartbeat, p.target.Heartbeat)
	}
	if poll {
		p.dispatch(ctx, "poll", &p.poll, p.target.Poll)
	}
	return heartbeat, poll
}

// dispatch runs call in the background. A call still running from the last
// firing is not doubled up; the countdown has already restarted.
func (p *Poller) dispatch(ctx context.Context, name string, c *countdown, call func(context.Context) error) {
	if !c.inflight.CompareAndSwap(false, true) {
		p.logger.Debug("previous call still running, skipping", zap.String("concern", name))
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer c.inflight.Store(false)

		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
		if err := call(callCtx); err != nil {
			// Not retried; the next interval tries again.
			p.logger.Debug("call failed", zap.String("concern", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched call has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Remaining reports the time left on each countdown.
func (p *Poller) Remaining() (heartbeat, poll time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeat.left, p.poll.left
}

// Run ticks every tickRate on clk until ctx is done, then waits for
// outstanding calls.
func (p *Poller) Run(ctx context.Context, clk clock.Clock, tickRate time.Duration) {
	ticker := clk.Ticker(tickRate)
	defer ticker.Stop()
	defer p.Wait()

	last := clk.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.Tick(ctx, now.Sub(last))
			last = now
		}
	}
}
