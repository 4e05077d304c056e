// internal/smp/cpu.go

package smp

import (
	"runtime"
	"sync/atomic"
)

// CPU carries a processor's identity and its bring-up flags.
//
// Flags are polled across processors without a lock, so every access is atomic.
type CPU struct {
	ID  uint32
	bsp bool

	blocked  atomic.Bool
	finished atomic.Bool
}

// NewCPU creates a processor. Application processors start blocked and
// finished; the BSP is never blocked.
func NewCPU(id uint32, bsp bool) *CPU {
	c := &CPU{ID: id, bsp: bsp}
	c.blocked.Store(!bsp)
	c.finished.Store(true)
	return c
}

// Boot creates n processors. CPU 0 is the bootstrap processor.
func Boot(n int) []*CPU {
	if n < 1 {
		n = 1
	}
	cpus := make([]*CPU, n)
	for i := range n {
		cpus[i] = NewCPU(uint32(i), i == 0)
	}
	return cpus
}

func (c *CPU) IsBSP() bool { return c.bsp }

func (c *CPU) IsBlocked() bool  { return c.blocked.Load() }
func (c *CPU) IsFinished() bool { return c.finished.Load() }

func (c *CPU) SetBlocked()    { c.blocked.Store(true) }
func (c *CPU) SetFinished()   { c.finished.Store(true) }
func (c *CPU) SetUnfinished() { c.finished.Store(false) }

// Unblock releases an application processor into its run loop.
func (c *CPU) Unblock() { c.blocked.Store(false) }

// WaitUnblocked spins until Unblock is called. relax runs between polls;
// nil yields the goroutine.
func (c *CPU) WaitUnblocked(relax func()) {
	if relax == nil {
		relax = runtime.Gosched
	}
	for c.blocked.Load() {
		relax()
	}
}

// WaitFinished spins until the processor leaves its run loop.
func (c *CPU) WaitFinished(relax func()) {
	if relax == nil {
		relax = runtime.Gosched
	}
	for !c.finished.Load() {
		relax()
	}
}
