package job

import (
	"sync/atomic"
	"time"

	"ktfsched/internal/sched"
)

// SleepWork returns a task body that sleeps for the given duration and
// reports the milliseconds slept as its result.
func SleepWork(ms int64) sched.TaskFunc {
	d := time.Duration(ms) * time.Millisecond
	return func(any) int64 {
		start := time.Now()
		time.Sleep(d)
		return time.Since(start).Milliseconds()
	}
}

// SpinWork returns a task body that busy-waits until release is set, then
// returns 0. Useful to hold a processor inside a task.
func SpinWork(release *atomic.Bool) sched.TaskFunc {
	return func(any) int64 {
		for !release.Load() {
			time.Sleep(time.Microsecond)
		}
		return 0
	}
}

// Counter counts executions across every task built from it.
type Counter struct {
	n atomic.Int64
}

// Work returns a task body that bumps the counter and returns the new value.
func (c *Counter) Work() sched.TaskFunc {
	return func(any) int64 {
		return c.n.Add(1)
	}
}

// Load returns the current count.
func (c *Counter) Load() int64 { return c.n.Load() }
