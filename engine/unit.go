// Package engine provides the lifecycle and message-handling plumbing
// shared by all engines of the node.
package engine

import (
	"context"
	"sync"
	"time"
)

// Unit handles the lifecycle management of an engine: it tracks pending
// work, exposes the quit signal, and drains launched routines on shutdown.
type Unit struct {
	sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewUnit returns a new unit.
func NewUnit() *Unit {
	ctx, cancel := context.WithCancel(context.Background())
	return &Unit{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Do synchronously executes the given function, tracking it as pending work.
// If the unit has already shut down, the function is skipped.
func (u *Unit) Do(f func() error) error {
	select {
	case <-u.ctx.Done():
		return nil
	default:
	}
	u.wg.Add(1)
	defer u.wg.Done()
	return f()
}

// Launch asynchronously executes the given function, tracking it as pending
// work. If the unit has already shut down, the function is never started.
func (u *Unit) Launch(f func()) {
	select {
	case <-u.ctx.Done():
		return
	default:
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		f()
	}()
}

// LaunchAfter asynchronously executes the given function after the delay,
// unless the unit shuts down first.
func (u *Unit) LaunchAfter(delay time.Duration, f func()) {
	u.Launch(func() {
		select {
		case <-u.ctx.Done():
		case <-time.After(delay):
			f()
		}
	})
}

// LaunchPeriodically asynchronously executes the given function on the given
// interval, after an initial delay, until the unit shuts down. Invocations
// never overlap: if one run takes longer than the interval, the next tick
// waits for it to finish.
func (u *Unit) LaunchPeriodically(f func(), interval time.Duration, delay time.Duration) {
	u.Launch(func() {
		select {
		case <-u.ctx.Done():
			return
		case <-time.After(delay):
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-u.ctx.Done():
				return
			case <-ticker.C:
				f()
			}
		}
	})
}

// Ready returns a channel that is closed once all the given startup checks
// have completed.
func (u *Unit) Ready(checks ...func()) <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for _, check := range checks {
			check()
		}
		close(ready)
	}()
	return ready
}

// Done shuts the unit down: it signals quit, runs the given teardown
// actions, and waits for all pending work to drain. The returned channel is
// closed when shutdown has completed.
func (u *Unit) Done(actions ...func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		u.cancel()
		for _, action := range actions {
			action()
		}
		u.wg.Wait()
		close(done)
	}()
	return done
}

// Quit returns a channel that is closed once the unit has begun shutdown.
func (u *Unit) Quit() <-chan struct{} {
	return u.ctx.Done()
}
