package engine

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler schedules reveal ticks. Callbacks run on an arbitrary goroutine;
// the engine posts them back onto its loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type wallScheduler struct{}

// WallScheduler schedules on the real clock via time.AfterFunc.
func WallScheduler() Scheduler { return wallScheduler{} }

func (wallScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
