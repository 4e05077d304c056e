package sched

import (
	"sync"
	"testing"

	"ktfsched/internal/mm"
	"ktfsched/internal/smp"
)

// eventLog records lifecycle events from every processor.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds(id TaskID) []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []EventKind
	for _, ev := range l.events {
		if ev.TaskID == id {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// haltLog captures contract violations instead of panicking.
type haltLog struct {
	mu  sync.Mutex
	cvs []*ContractViolation
}

func (h *haltLog) halt(cv *ContractViolation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cvs = append(h.cvs, cv)
}

func (h *haltLog) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cvs)
}

type fixture struct {
	s      *Scheduler
	pages  *mm.Allocator
	clock  *TickClock
	events *eventLog
	cpus   []*smp.CPU
	procs  []*Processor
}

// newFixture builds a scheduler with n processors. CPU 0 is the BSP.
func newFixture(t *testing.T, n int, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		pages:  mm.NewAllocator(0),
		clock:  NewTickClock(),
		events: &eventLog{},
		cpus:   smp.Boot(n),
	}
	base := []Option{
		WithPageAllocator(f.pages),
		WithRelaxer(f.clock),
		WithObserver(f.events),
	}
	f.s = New(append(base, opts...)...)
	for _, c := range f.cpus {
		f.procs = append(f.procs, f.s.AddProcessor(c))
	}
	return f
}

func (f *fixture) task(t *testing.T, name string, fn TaskFunc) *Task {
	t.Helper()
	if fn == nil {
		fn = func(any) int64 { return 0 }
	}
	tk, err := f.s.NewTask(name, fn, nil, TypeKernel)
	if err != nil {
		t.Fatalf("NewTask(%s) failed: %v", name, err)
	}
	return tk
}

func (f *fixture) submit(t *testing.T, tk *Task, p *Processor) {
	t.Helper()
	if err := f.s.Schedule(tk, p); err != nil {
		t.Fatalf("Schedule(%s) failed: %v", tk, err)
	}
}

func expectViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected contract violation panic")
		}
		if _, ok := r.(*ContractViolation); !ok {
			t.Fatalf("expected *ContractViolation, got %T: %v", r, r)
		}
	}()
	fn()
}
