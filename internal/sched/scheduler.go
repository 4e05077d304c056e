// internal/sched/scheduler.go

package sched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"ktfsched/internal/klog"
	"ktfsched/internal/mm"
	"ktfsched/internal/smp"
	"ktfsched/internal/usermode"
)

// PageAllocator provides stack pages for user tasks.
type PageAllocator interface {
	GetFreePageTop(flags mm.GFP) (*mm.Page, error)
	PutPageTop(p *mm.Page)
}

// Trampoline runs a function unprivileged on the given stack.
type Trampoline interface {
	Enter(fn func(any) int64, arg any, stack *mm.Page) int64
}

// Scheduler creates tasks and drives per-processor run queues.
//
// There is no global lock: each Processor serializes its own queue, and the
// processor registry has its own lock that is never held while running tasks.
type Scheduler struct {
	nextID atomic.Uint64

	mu    sync.RWMutex // protects procs
	procs *treemap.Map // uint32 -> *Processor

	log   klog.Logger
	pages PageAllocator
	tramp Trampoline
	relax Relaxer
	obs   Observer
	halt  func(cv *ContractViolation)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l klog.Logger) Option          { return func(s *Scheduler) { s.log = l } }
func WithPageAllocator(a PageAllocator) Option { return func(s *Scheduler) { s.pages = a } }
func WithTrampoline(tr Trampoline) Option      { return func(s *Scheduler) { s.tramp = tr } }
func WithRelaxer(r Relaxer) Option             { return func(s *Scheduler) { s.relax = r } }
func WithObserver(o Observer) Option           { return func(s *Scheduler) { s.obs = o } }

// WithHalt replaces the fatal stop taken on a contract violation. If halt
// returns, the violating operation is abandoned and reports the violation as
// an error. A violation inside RunTasks ends that run loop early and leaves
// the offending task linked.
func WithHalt(halt func(cv *ContractViolation)) Option {
	return func(s *Scheduler) { s.halt = halt }
}

// New creates a scheduler with no processors.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		procs: treemap.NewWith(utils.UInt32Comparator),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = klog.NewNoOpLogger()
	}
	if s.pages == nil {
		s.pages = mm.NewAllocator(0)
	}
	if s.tramp == nil {
		s.tramp = usermode.New(s.log)
	}
	if s.relax == nil {
		s.relax = NewTickClock()
	}
	if s.halt == nil {
		s.halt = func(cv *ContractViolation) { panic(cv) }
	}
	s.log.Info("Initializing tasks")
	return s
}

// AddProcessor registers c and returns its processor. Registering the same
// CPU id twice returns the existing processor.
func (s *Scheduler) AddProcessor(c *smp.CPU) *Processor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.procs.Get(c.ID); ok {
		return v.(*Processor)
	}
	p := newProcessor(c)
	s.procs.Put(c.ID, p)
	return p
}

// Processor returns the processor with the given id, or nil.
func (s *Scheduler) Processor(id uint32) *Processor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.procs.Get(id); ok {
		return v.(*Processor)
	}
	return nil
}

// Processors returns all processors ordered by id.
func (s *Scheduler) Processors() []*Processor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Processor, 0, s.procs.Size())
	for _, v := range s.procs.Values() {
		out = append(out, v.(*Processor))
	}
	return out
}

// NewTask creates and prepares a task. On failure nothing is left allocated.
func (s *Scheduler) NewTask(name string, fn TaskFunc, arg any, typ TaskType) (*Task, error) {
	t := s.createTask()

	if err := s.prepareTask(t, name, fn, arg, typ); err != nil {
		s.DestroyTask(t)
		return nil, err
	}
	return t, nil
}

func (s *Scheduler) createTask() *Task {
	t := &Task{sched: s, group: GroupAll}
	t.ID = TaskID(s.nextID.Add(1) - 1)
	t.state.Store(int32(StateNew))
	t.repeat.Store(int64(RepeatOnce))
	s.emit(EventCreated, t)
	return t
}

func (s *Scheduler) prepareTask(t *Task, name string, fn TaskFunc, arg any, typ TaskType) error {
	if t == nil {
		return ErrInvalidArgument
	}
	if st := t.State(); st > StateReady {
		return s.bug("task %s[%d]: prepared in state %s", name, t.ID, st)
	}

	t.name = name
	t.fn = fn
	t.arg = arg
	t.typ = typ
	if typ == TypeUser {
		stack, err := s.pages.GetFreePageTop(mm.GFPUser)
		if err != nil {
			s.log.Error("Unable to allocate user stack",
				klog.F("task", t.String()), klog.F("err", err))
			return fmt.Errorf("task %s: user stack: %w", t, err)
		}
		t.stack = stack
	}
	t.setState(StateReady)
	s.emit(EventReady, t)
	return nil
}

// DestroyTask unlinks t from its processor and releases its stack. The
// caller must not use t afterwards.
func (s *Scheduler) DestroyTask(t *Task) {
	if t == nil {
		return
	}
	if !t.destroyed.CompareAndSwap(false, true) {
		s.bug("task %s: destroyed twice", t)
		return
	}

	if p := t.cpu.Load(); p != nil {
		p.mu.Lock()
		p.unlink(t)
		s.releaseStack(t)
		p.mu.Unlock()
	} else {
		s.releaseStack(t)
	}
	s.emit(EventDestroyed, t)
}

func (s *Scheduler) releaseStack(t *Task) {
	if t.stack != nil {
		s.pages.PutPageTop(t.stack)
	}
}

// Schedule appends a READY task to the tail of p's queue.
func (s *Scheduler) Schedule(t *Task, p *Processor) error {
	if t == nil {
		return ErrInvalidArgument
	}
	if p == nil {
		s.log.Warn("Unable to schedule task. CPU does not exist.", klog.F("task", t.name))
		return fmt.Errorf("schedule %s: %w", t, ErrNoProcessor)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t.destroyed.Load() {
		return s.bug("task %s: scheduled after destroy", t)
	}
	if !t.state.CompareAndSwap(int32(StateReady), int32(StateScheduled)) {
		return s.bug("task %s: scheduled in state %s", t, t.State())
	}
	p.link(t)
	t.cpu.Store(p)

	// The run loop cannot see t until the lock is dropped, so these are
	// ordered before anything it does with the task.
	t.traceTransition(StateReady, StateScheduled)
	s.log.Info("Scheduling task",
		klog.F("cpu", p.ID()),
		klog.F("task", t.String()),
		klog.F("repeat", t.Repeat()))
	s.emit(EventScheduled, t)
	return nil
}

// bug reports a contract violation and halts. It only returns when a
// WithHalt hook chose not to stop.
func (s *Scheduler) bug(format string, args ...any) error {
	cv := &ContractViolation{Msg: fmt.Sprintf(format, args...)}
	s.log.Error(cv.Error())
	s.halt(cv)
	return cv
}
