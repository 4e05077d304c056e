// internal/sched/wait.go

package sched

// WaitForGroup spins until every task in p's queue tagged with group (or
// every task, for GroupAll) is DONE.
//
// The run loop may reschedule or retire a task right after it is seen DONE,
// so one wait per task is not enough: passes repeat until a full pass finds
// nothing pending. There is no timeout; a LOOP task in the group can keep
// this spinning forever.
func (s *Scheduler) WaitForGroup(p *Processor, group Group) error {
	if p == nil {
		return ErrInvalidArgument
	}

	for {
		busy := false
		for _, t := range p.Tasks() {
			if group != GroupAll && t.group != group {
				continue
			}
			if t.State() != StateDone {
				busy = true
				s.waitForState(t, StateDone)
			}
		}
		s.relax.Relax()
		if !busy {
			return nil
		}
	}
}
