// internal/sched/processor.go

package sched

import (
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	xcpu "golang.org/x/sys/cpu"

	"ktfsched/internal/smp"
)

// Processor owns one run queue. The queue is mutated only under mu; the run
// loop and WaitForGroup work from snapshots and poll task state lock-free.
type Processor struct {
	cpu *smp.CPU

	_     xcpu.CacheLinePad
	mu    sync.Mutex         // protects queue and seq
	queue *redblacktree.Tree // tasks ordered by submission sequence
	seq   uint64             // next submission sequence number
	_     xcpu.CacheLinePad
}

func newProcessor(c *smp.CPU) *Processor {
	return &Processor{
		cpu:   c,
		queue: redblacktree.NewWith(cmp),
	}
}

func (p *Processor) ID() uint32    { return p.cpu.ID }
func (p *Processor) CPU() *smp.CPU { return p.cpu }

// Len returns the number of tasks linked into the queue.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Size()
}

// Tasks returns the queued tasks in submission order.
func (p *Processor) Tasks() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks := make([]*Task, 0, p.queue.Size())
	it := p.queue.Iterator()
	for it.Next() {
		tasks = append(tasks, it.Value().(*Task))
	}
	return tasks
}

// FindTask returns the first queued task named name, or nil.
func (p *Processor) FindTask(name string) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	it := p.queue.Iterator()
	for it.Next() {
		if t := it.Value().(*Task); t.name == name {
			return t
		}
	}
	return nil
}

// link appends t to the tail of the queue. Caller holds p.mu.
func (p *Processor) link(t *Task) {
	t.key = queueKey{seq: p.seq, id: t.ID}
	p.seq++
	p.queue.Put(t.key, t)
}

// unlink removes t from the queue. Caller holds p.mu.
func (p *Processor) unlink(t *Task) {
	p.queue.Remove(t.key)
}

// queueKey is used as a key in the red-black tree.
type queueKey struct {
	seq uint64
	id  TaskID
}

// cmp orders queue keys by submission sequence, then task id.
func cmp(a, b any) int {
	ka, kb := a.(queueKey), b.(queueKey)
	switch {
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
