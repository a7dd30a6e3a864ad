package driver

import (
	"context"
	"sync"
)

// Loop runs posted functions one at a time on a single goroutine. Every
// piece of per-device state is owned by its loop.
type Loop struct {
	inbox    chan func()
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// NewLoop starts a loop with the given inbox capacity.
func NewLoop(capacity int) *Loop {
	l := &Loop{
		inbox:    make(chan func(), capacity),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.finished)
	for {
		select {
		case f := <-l.inbox:
			f()
		case <-l.done:
			return
		}
	}
}

// Post enqueues f. It implements health.PostFunc and returns false once the
// loop is stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- f:
		return true
	case <-l.done:
		return false
	}
}

// Do runs f on the loop and waits for it.
func (l *Loop) Do(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	if !l.Post(func() { f(); close(ran) }) {
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the loop after the function currently running. Pending posts
// are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
	<-l.finished
}
