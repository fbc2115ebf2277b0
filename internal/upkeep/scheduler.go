// Package upkeep runs a periodic action, the autosave snapshot, for as
// long as the hosted game keeps running.
package upkeep

import (
	"context"
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

// DefaultPoll is how often the continue condition is checked.
const DefaultPoll = 3 * time.Second

// Clock is the time source of a Scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Result summarizes a run.
type Result struct {
	Fired     int
	Failed    int
	LastFired time.Time
}

// Scheduler fires an action on a fixed interval while a condition holds.
type Scheduler struct {
	clock Clock
	poll  time.Duration
	log   *logging.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithPoll sets the tick on which the continue condition is checked.
func WithPoll(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLogger sets the logger action failures are reported to.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: RealClock, poll: DefaultPoll, log: logging.Global()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until shouldContinue reports false or ctx is done. action
// fires once per interval, measured from the end of the previous firing,
// and never overlaps itself. A failed action is logged and the schedule
// carries on.
func (s *Scheduler) Run(ctx context.Context, action func(context.Context) error, interval time.Duration, shouldContinue func() bool) Result {
	var res Result
	last := s.clock.Now()

	for {
		if ctx.Err() != nil || !shouldContinue() {
			return res
		}

		if s.clock.Now().Sub(last) >= interval {
			res.Fired++
			if err := action(ctx); err != nil {
				res.Failed++
				s.log.ErrorErr("upkeep action failed", err, map[string]any{"fired": res.Fired})
			}
			last = s.clock.Now()
			res.LastFired = last
		}

		select {
		case <-ctx.Done():
			return res
		case <-s.clock.After(s.poll):
		}
	}
}
