// internal/sched/task.go

package sched

import (
	"fmt"
	"sync/atomic"

	"ktfsched/internal/mm"
)

// TaskID uniquely identifies a task within its scheduler.
type TaskID uint64

// TaskFunc is the work a task runs. The return value becomes the task result.
type TaskFunc func(arg any) int64

// TaskType selects the privilege level a task runs at.
type TaskType int

const (
	TypeKernel TaskType = iota
	TypeUser
)

func (tt TaskType) String() string {
	if tt == TypeUser {
		return "User"
	}
	return "Kernel"
}

// Group tags tasks for WaitForGroup.
type Group uint32

// GroupAll matches every task.
const GroupAll Group = 0

// Repeat is a task's repeat policy: RepeatOnce, RepeatLoop, or a count N > 0
// of additional runs.
type Repeat int64

const (
	RepeatOnce Repeat = 0
	RepeatLoop Repeat = -1
)

func (r Repeat) String() string {
	switch r {
	case RepeatOnce:
		return "ONCE"
	case RepeatLoop:
		return "LOOP"
	default:
		return fmt.Sprintf("%d times", r)
	}
}

// Task represents one schedulable unit of work.
//
// Name, group, type, function and argument are populated by the creator
// before submission and are read-only afterwards. State, repeat count,
// result and execution count are polled by other processors and are atomic.
type Task struct {
	ID TaskID

	name  string
	group Group
	typ   TaskType
	fn    TaskFunc
	arg   any
	stack *mm.Page

	state     atomic.Int32
	repeat    atomic.Int64
	result    atomic.Int64
	execCount atomic.Uint64
	destroyed atomic.Bool

	sched *Scheduler
	cpu   atomic.Pointer[Processor] // owning processor, set once on Schedule
	key   queueKey                  // run queue linkage, guarded by cpu.mu
}

func (t *Task) Name() string      { return t.name }
func (t *Task) Group() Group      { return t.group }
func (t *Task) Type() TaskType    { return t.typ }
func (t *Task) Stack() *mm.Page   { return t.stack }
func (t *Task) Result() int64     { return t.result.Load() }
func (t *Task) Repeat() Repeat    { return Repeat(t.repeat.Load()) }
func (t *Task) ExecCount() uint64 { return t.execCount.Load() }

// Processor returns the owning processor, or nil before submission.
func (t *Task) Processor() *Processor { return t.cpu.Load() }

// SetRepeat changes the repeat policy. Only allowed before submission.
func (t *Task) SetRepeat(r Repeat) error {
	if t == nil {
		return ErrInvalidArgument
	}
	if r < RepeatLoop {
		return fmt.Errorf("repeat %d: %w", r, ErrInvalidArgument)
	}
	if st := t.State(); st > StateReady {
		return t.sched.bug("task %s[%d]: repeat changed in state %s", t.name, t.ID, st)
	}
	t.repeat.Store(int64(r))
	return nil
}

// SetOnce is shorthand for SetRepeat(RepeatOnce).
func (t *Task) SetOnce() error { return t.SetRepeat(RepeatOnce) }

// SetGroup tags the task for WaitForGroup. Only allowed before submission.
func (t *Task) SetGroup(g Group) error {
	if t == nil {
		return ErrInvalidArgument
	}
	if st := t.State(); st > StateReady {
		return t.sched.bug("task %s[%d]: group changed in state %s", t.name, t.ID, st)
	}
	t.group = g
	return nil
}

func (t *Task) String() string {
	return fmt.Sprintf("%s[%d]", t.name, t.ID)
}
