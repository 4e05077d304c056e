// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// EventKind represents the type of lifecycle event
type EventKind int

const (
	EventCreated EventKind = iota
	EventReady
	EventScheduled
	EventRunning
	EventDone
	EventRescheduled
	EventDestroyed
)

// Event is emitted on every task lifecycle step.
type Event struct {
	Time      time.Time
	Kind      EventKind
	CPU       int // -1 until the task is scheduled
	TaskID    TaskID
	Name      string
	ExecCount uint64
	Result    int64
}

// Observer receives lifecycle events. Observe is called synchronously from
// whichever processor caused the event, so it must be safe for concurrent use
// and must not block.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

func (ek EventKind) String() string {
	switch ek {
	case EventCreated:
		return "Created"
	case EventReady:
		return "Ready"
	case EventScheduled:
		return "Scheduled"
	case EventRunning:
		return "Running"
	case EventDone:
		return "Done"
	case EventRescheduled:
		return "Rescheduled"
	case EventDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

func (s *Scheduler) emit(kind EventKind, t *Task) {
	if s.obs == nil {
		return
	}
	cpu := -1
	if p := t.cpu.Load(); p != nil {
		cpu = int(p.ID())
	}
	s.obs.Observe(Event{
		Time:      time.Now(),
		Kind:      kind,
		CPU:       cpu,
		TaskID:    t.ID,
		Name:      t.name,
		ExecCount: t.execCount.Load(),
		Result:    t.result.Load(),
	})
}
