// Package poll drives the fixed-interval refresh loops the client uses in
// place of server push.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrStalled is returned when a loop exceeds MaxDuration without finishing.
var ErrStalled = errors.New("poll: gave up waiting")

// Func performs one tick. Returning done=true ends the loop.
type Func func(ctx context.Context) (done bool, err error)

type Loop struct {
	Name     string
	Interval time.Duration
	// Immediate runs the first tick before waiting a full interval.
	Immediate bool
	// MaxDuration bounds the whole loop. Zero means unbounded.
	MaxDuration time.Duration
	// Fatal classifies tick errors that end the loop. Other errors are
	// logged and the loop keeps ticking.
	Fatal  func(error) bool
	Logger zerolog.Logger
}

// Run blocks until fn reports done, a fatal error occurs, ctx is cancelled,
// or MaxDuration elapses. Only one tick is ever in flight.
func (l Loop) Run(ctx context.Context, fn Func) error {
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second
	}

	var deadline <-chan time.Time
	if l.MaxDuration > 0 {
		timer := time.NewTimer(l.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	if l.Immediate {
		if done, err := l.tick(ctx, fn); done || err != nil {
			return err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			l.Logger.Warn().Str("loop", l.Name).Dur("max", l.MaxDuration).Msg("poll loop stalled")
			return ErrStalled
		case <-ticker.C:
			if done, err := l.tick(ctx, fn); done || err != nil {
				return err
			}
		}
	}
}

func (l Loop) tick(ctx context.Context, fn Func) (bool, error) {
	done, err := fn(ctx)
	if err == nil {
		return done, nil
	}
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	if l.Fatal != nil && l.Fatal(err) {
		return true, err
	}
	l.Logger.Debug().Err(err).Str("loop", l.Name).Msg("poll tick failed")
	return false, nil
}
