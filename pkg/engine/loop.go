package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("engine stopped")

// Run processes posted operations until ctx is canceled. All engine state is
// owned by the goroutine running Run.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer func() {
		e.stopOnce.Do(func() { close(e.stopped) })
		if e.reveal != nil && e.reveal.timer != nil {
			e.reveal.timer.Stop()
		}
		log.Debug().Str("component", "engine").Msg("engine loop stopped")
	}()

	log.Debug().Str("component", "engine").Msg("engine loop started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-e.ops:
			fn()
		}
	}
}

// post queues fn for the loop. It must never be called from the loop itself.
// It reports false when the loop has stopped.
func (e *Engine) post(fn func()) bool {
	select {
	case e.ops <- fn:
		return true
	case <-e.stopped:
		return false
	}
}

// spawn runs a blocking call off the loop. The completion fn returns, if
// any, runs on the loop, and the call counts as in flight until it has.
func (e *Engine) spawn(fn func(ctx context.Context) func()) {
	e.inflight.Add(1)
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		done := fn(ctx)
		applied := e.post(func() {
			defer e.inflight.Add(-1)
			if done != nil {
				done()
			}
		})
		if !applied {
			e.inflight.Add(-1)
		}
	}()
}

// sync returns once every operation posted before it has run.
func (e *Engine) sync(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case e.ops <- func() { close(done) }:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle blocks until no request is in flight and every completion has
// been applied. Scheduled reveal ticks are not waited for.
func (e *Engine) WaitIdle(ctx context.Context) error {
	for {
		// inflight drops on the loop, after the completion ran. The sync
		// flushes operations the completion itself queued.
		if e.inflight.Load() == 0 {
			if err := e.sync(ctx); err != nil {
				return err
			}
			if e.inflight.Load() == 0 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopped:
			return ErrStopped
		case <-time.After(time.Millisecond):
		}
	}
}
