package smp

import (
	"testing"
	"time"
)

func TestBoot(t *testing.T) {
	cpus := Boot(3)
	if len(cpus) != 3 {
		t.Fatalf("Boot(3) returned %d cpus", len(cpus))
	}
	if !cpus[0].IsBSP() || cpus[0].IsBlocked() {
		t.Errorf("cpu 0 should be an unblocked BSP")
	}
	for _, c := range cpus[1:] {
		if c.IsBSP() {
			t.Errorf("cpu %d should not be BSP", c.ID)
		}
		if !c.IsBlocked() {
			t.Errorf("cpu %d should start blocked", c.ID)
		}
		if !c.IsFinished() {
			t.Errorf("cpu %d should start finished", c.ID)
		}
	}

	if got := len(Boot(0)); got != 1 {
		t.Errorf("Boot(0) should still create the BSP, got %d cpus", got)
	}
}

func TestWaitUnblocked(t *testing.T) {
	c := NewCPU(1, false)
	released := make(chan struct{})

	go func() {
		c.WaitUnblocked(nil)
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("WaitUnblocked returned while still blocked")
	case <-time.After(20 * time.Millisecond):
	}

	c.Unblock()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("WaitUnblocked did not return after Unblock")
	}
}
