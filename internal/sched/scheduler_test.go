package sched

import (
	"errors"
	"testing"

	"ktfsched/internal/smp"
)

// TestSchedule tests submission
// Main test items:
// 1. Missing task or processor is rejected without a state change
// 2. A READY task is appended in FIFO order, owned, and SCHEDULED
// 3. Submitting the same task twice is a contract violation
func TestSchedule(t *testing.T) {
	f := newFixture(t, 2)
	p := f.procs[1]

	if err := f.s.Schedule(nil, p); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Schedule(nil) = %v, want ErrInvalidArgument", err)
	}

	orphan := f.task(t, "orphan", nil)
	if err := f.s.Schedule(orphan, f.s.Processor(9)); !errors.Is(err, ErrNoProcessor) {
		t.Errorf("Schedule onto missing CPU = %v, want ErrNoProcessor", err)
	}
	if orphan.State() != StateReady || orphan.Processor() != nil {
		t.Errorf("orphan changed: state=%s owner=%v", orphan.State(), orphan.Processor())
	}

	var tasks []*Task
	for _, name := range []string{"first", "second", "third"} {
		tk := f.task(t, name, nil)
		f.submit(t, tk, p)
		tasks = append(tasks, tk)
	}
	queued := p.Tasks()
	if len(queued) != 3 {
		t.Fatalf("queue length %d, want 3", len(queued))
	}
	for i, tk := range tasks {
		if queued[i] != tk {
			t.Errorf("position %d: got %s, want %s", i, queued[i], tk)
		}
		if tk.State() != StateScheduled || tk.Processor() != p {
			t.Errorf("%s: state=%s owner=%v", tk, tk.State(), tk.Processor())
		}
	}
	if f.procs[0].Len() != 0 {
		t.Errorf("CPU[0] queue touched")
	}

	expectViolation(t, func() { f.s.Schedule(tasks[0], p) })
	if p.Len() != 3 {
		t.Errorf("double submission changed the queue, Len() = %d", p.Len())
	}
}

func TestSchedule_NotReadyWithHalt(t *testing.T) {
	h := &haltLog{}
	f := newFixture(t, 1, WithHalt(h.halt))

	tk := f.task(t, "twice", nil)
	f.submit(t, tk, f.procs[0])

	var cv *ContractViolation
	if err := f.s.Schedule(tk, f.procs[0]); !errors.As(err, &cv) {
		t.Fatalf("second Schedule = %v, want contract violation", err)
	}
	if h.count() != 1 {
		t.Errorf("halt called %d times, want 1", h.count())
	}
}

// TestSchedule_AfterDestroy tests that a destroyed task cannot be resubmitted
// Main test items:
// 1. Its stack page has been handed to a new task
// 2. Scheduling the destroyed handle is a violation and leaves the queue empty
func TestSchedule_AfterDestroy(t *testing.T) {
	h := &haltLog{}
	f := newFixture(t, 1, WithHalt(h.halt))
	p := f.procs[0]

	fn := func(any) int64 { return 0 }
	old, err := f.s.NewTask("old", fn, nil, TypeUser)
	if err != nil {
		t.Fatal(err)
	}
	f.s.DestroyTask(old)
	fresh, err := f.s.NewTask("new", fn, nil, TypeUser)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Stack() != old.Stack() {
		t.Fatalf("stack page was not recycled")
	}

	var cv *ContractViolation
	if err := f.s.Schedule(old, p); !errors.As(err, &cv) {
		t.Fatalf("Schedule(destroyed) = %v, want contract violation", err)
	}
	if h.count() != 1 {
		t.Errorf("halt called %d times, want 1", h.count())
	}
	if p.Len() != 0 || old.State() != StateReady {
		t.Errorf("destroyed task accepted: Len()=%d state=%s", p.Len(), old.State())
	}
}

func TestFindTask(t *testing.T) {
	f := newFixture(t, 1)
	p := f.procs[0]

	a := f.task(t, "dup", nil)
	b := f.task(t, "dup", nil)
	c := f.task(t, "other", nil)
	f.submit(t, a, p)
	f.submit(t, b, p)
	f.submit(t, c, p)

	if got := p.FindTask("dup"); got != a {
		t.Errorf("FindTask(dup) = %v, want first match %s", got, a)
	}
	if got := p.FindTask("other"); got != c {
		t.Errorf("FindTask(other) = %v, want %s", got, c)
	}
	if got := p.FindTask("missing"); got != nil {
		t.Errorf("FindTask(missing) = %s, want nil", got)
	}

	f.s.DestroyTask(a)
	if got := p.FindTask("dup"); got != b {
		t.Errorf("FindTask(dup) after destroy = %v, want %s", got, b)
	}
}

func TestProcessors(t *testing.T) {
	s := New()
	c2, c0 := smp.NewCPU(2, false), smp.NewCPU(0, true)
	p2 := s.AddProcessor(c2)
	s.AddProcessor(c0)

	if again := s.AddProcessor(c2); again != p2 {
		t.Errorf("re-adding CPU 2 created a new processor")
	}
	ps := s.Processors()
	if len(ps) != 2 || ps[0].ID() != 0 || ps[1].ID() != 2 {
		t.Errorf("Processors() not ordered by id: %v", ps)
	}
	if s.Processor(1) != nil {
		t.Errorf("Processor(1) should be nil")
	}
	if s.Processor(2).CPU() != c2 {
		t.Errorf("Processor(2) has wrong CPU")
	}
}
