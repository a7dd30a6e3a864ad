package health

import "time"

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop prevents the callback from running if it has not started. A
	// callback already queued on the owning loop may still run.
	Stop() bool
}

// Scheduler creates timers whose callbacks run on the owner's event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// PostFunc enqueues f on an event loop. It returns false when the loop has
// stopped.
type PostFunc func(f func()) bool

type loopScheduler struct {
	post PostFunc
}

// NewLoopScheduler returns a Scheduler backed by time.AfterFunc that hands
// each firing to post instead of running it on the timer goroutine.
func NewLoopScheduler(post PostFunc) Scheduler {
	return loopScheduler{post: post}
}

func (s loopScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { s.post(f) })
}
