// internal/sched/tickclock.go

package sched

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Relaxer is called between polls of every spin-wait loop.
type Relaxer interface {
	Relax()
}

// TickClock paces spin-waits and counts them atomically.
//
// With a zero interval Relax just yields the processor. With an interval it
// waits for the next tick, which throttles spinning processors.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
	ticking  atomic.Bool
	stopped  atomic.Bool
}

// NewTickClock creates a clock but does not start it.
func NewTickClock() *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval. A non-positive interval
// leaves the clock in yield mode. A clock is single-use: Start after Stop,
// or a second Start, does nothing.
func (c *TickClock) Start(interval time.Duration) {
	if interval <= 0 || c.stopped.Load() {
		return
	}
	if !c.ticking.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case c.Ch <- struct{}{}:
				default:
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop releases the ticker goroutine. Relax falls back to yielding.
func (c *TickClock) Stop() {
	c.stopped.Store(true)
	c.ticking.Store(false)
	c.stopOnce.Do(func() { close(c.stop) })
}

// Relax counts one spin and yields or waits for the next tick.
func (c *TickClock) Relax() {
	c.count.Add(1)
	if !c.ticking.Load() {
		runtime.Gosched()
		return
	}
	select {
	case <-c.Ch:
	case <-c.stop:
	}
}

// Count returns how many times Relax has been called.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
