// internal/sched/runloop.go

package sched

import "ktfsched/internal/klog"

// RunTasks drains p's queue: it runs SCHEDULED tasks, retires DONE ones and
// reschedules repeating ones until a full pass leaves the queue empty.
//
// It is called once per processor after bring-up. Application processors
// first wait for the BSP to unblock them and block again on the way out.
func (s *Scheduler) RunTasks(p *Processor) {
	if p == nil {
		return
	}
	c := p.cpu

	if !c.IsBSP() {
		c.WaitUnblocked(s.relax.Relax)
	}
	c.SetUnfinished()

drain:
	for {
		for _, t := range p.Tasks() {
			switch st := t.State(); st {
			case StateDone:
				s.processTaskRepeat(t)
			case StateScheduled:
				s.runTask(t)
			default:
				// A halt hook that returns leaves the task linked; stop
				// draining rather than trip over it on every pass.
				s.bug("CPU[%d]: task %s in state %s on run queue", p.ID(), t, st)
				break drain
			}
			s.relax.Relax()
		}
		if p.Len() == 0 {
			break
		}
	}

	if !c.IsBSP() {
		c.SetBlocked()
	}
	c.SetFinished()
}

func (s *Scheduler) runTask(t *Task) {
	s.waitForState(t, StateScheduled)

	t.setState(StateRunning)
	if t.execCount.Add(1) == 1 {
		s.log.Info("Running task", klog.F("cpu", t.cpuLabel()), klog.F("task", t.String()))
	}
	s.emit(EventRunning, t)

	var res int64
	if t.typ == TypeUser {
		res = s.tramp.Enter(t.fn, t.arg, t.stack)
	} else {
		res = t.fn(t.arg)
	}
	t.result.Store(res)

	t.setState(StateDone)
	s.emit(EventDone, t)
}

func (s *Scheduler) processTaskRepeat(t *Task) {
	switch r := t.Repeat(); r {
	case RepeatOnce:
		s.log.Info(t.typ.String()+" task finished",
			klog.F("task", t.name),
			klog.F("cpu", t.cpuLabel()),
			klog.F("result", t.Result()),
			klog.F("runs", t.ExecCount()))
		s.DestroyTask(t)
	case RepeatLoop:
		t.setState(StateScheduled)
		s.emit(EventRescheduled, t)
	default:
		t.repeat.Store(int64(r - 1))
		t.setState(StateScheduled)
		s.emit(EventRescheduled, t)
	}
}
