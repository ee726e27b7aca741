package cmds

import (
	"context"

	"github.com/go-go-golems/docchat/pkg/events"
)

// turnWaiter lets a line-mode command block until the engine settled the
// current turn. Refused requests settle too.
type turnWaiter struct {
	ch chan events.Event
}

var _ events.View = &turnWaiter{}

func newTurnWaiter() *turnWaiter {
	return &turnWaiter{ch: make(chan events.Event, 64)}
}

func (w *turnWaiter) Apply(ev events.Event) {
	switch ev.(type) {
	case *events.TurnSettled, *events.NoticeRaised:
	default:
		return
	}
	select {
	case w.ch <- ev:
	default:
	}
}

func (w *turnWaiter) reset() {
	for {
		select {
		case <-w.ch:
		default:
			return
		}
	}
}

// wait returns the settled turn, or nil if a notice or ctx ended the wait.
func (w *turnWaiter) wait(ctx context.Context) *events.TurnSettled {
	select {
	case <-ctx.Done():
		return nil
	case ev := <-w.ch:
		ts, _ := ev.(*events.TurnSettled)
		return ts
	}
}

// waitSettled ignores notices and returns the next settled turn.
func (w *turnWaiter) waitSettled(ctx context.Context) *events.TurnSettled {
	for {
		ts := w.wait(ctx)
		if ts != nil || ctx.Err() != nil {
			return ts
		}
	}
}
