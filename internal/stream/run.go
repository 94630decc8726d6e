package stream

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

type tickerFactory func(time.Duration) (<-chan time.Time, func())

type timeSource func() time.Time

// ObserverFunc reports the observer position at now.
type ObserverFunc func(now time.Time) mgl32.Vec3

type runner struct {
	streamer  *Streamer
	tick      time.Duration
	newTicker tickerFactory
	now       timeSource
}

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

func newRunner(s *Streamer, tick time.Duration) *runner {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &runner{
		streamer:  s,
		tick:      tick,
		newTicker: defaultTickerFactory(),
		now:       time.Now,
	}
}

// Run drives Update and Tick on every tick until ctx is cancelled. The
// observer is sampled once before the first tick so streaming starts
// immediately.
func (s *Streamer) Run(ctx context.Context, observer ObserverFunc) error {
	return s.runner.run(ctx, observer)
}

func (r *runner) run(ctx context.Context, observer ObserverFunc) error {
	if r.newTicker == nil {
		r.newTicker = defaultTickerFactory()
	}
	if r.now == nil {
		r.now = time.Now
	}

	r.streamer.Update(observer(r.now()))

	tickerC, stop := r.newTicker(r.tick)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tickerC:
			r.streamer.Update(observer(now))
			r.streamer.Tick()
		}
	}
}
