// internal/sched/state.go

package sched

import "ktfsched/internal/klog"

// State is a task's position in its lifecycle.
//
//	NEW → READY → SCHEDULED → RUNNING → DONE
//	DONE → SCHEDULED   (repeat policy, run loop only)
//
// Other processors poll the state without holding the queue lock. Go atomics
// are sequentially consistent, so a store is visible to every later load.
type State int32

const (
	StateNew State = iota
	StateReady
	StateScheduled
	StateRunning
	StateDone
)

var stateNames = [...]string{
	StateNew:       "NEW",
	StateReady:     "READY",
	StateScheduled: "SCHEDULED",
	StateRunning:   "RUNNING",
	StateDone:      "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// State returns the task's current state.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) setState(s State) {
	old := State(t.state.Swap(int32(s)))
	t.traceTransition(old, s)
}

func (t *Task) traceTransition(from, to State) {
	t.sched.log.Debug("state transition",
		klog.F("cpu", t.cpuLabel()),
		klog.F("task", t.String()),
		klog.F("from", from),
		klog.F("to", to))
}

// waitForState spins until the task is observed in state s.
func (s *Scheduler) waitForState(t *Task, st State) {
	for t.State() != st {
		s.relax.Relax()
	}
}

func (t *Task) cpuLabel() any {
	if p := t.cpu.Load(); p != nil {
		return p.ID()
	}
	return "-"
}
