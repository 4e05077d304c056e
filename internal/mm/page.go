// internal/mm/page.go

package mm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/stacks/arraystack"
)

const PageSize = 4096

// ErrOutOfMemory is returned when the page pool is exhausted.
var ErrOutOfMemory = errors.New("out of memory")

// GFP selects the mapping a page is handed out with.
type GFP int

const (
	GFPKernel GFP = iota
	GFPUser
)

// Page is one stack page. Stacks grow down, so callers work from Top.
type Page struct {
	Data  [PageSize]byte
	Flags GFP
	pfn   uint64
}

// PFN is the page frame number, unique within its allocator.
func (p *Page) PFN() uint64 { return p.pfn }

// Top returns the offset of the first byte past the page, the initial stack pointer.
func (p *Page) Top() int { return PageSize }

// Allocator hands out single pages from a bounded pool.
type Allocator struct {
	mu      sync.Mutex
	free    *arraystack.Stack // recycled pages
	inUse   *hashset.Set      // pfns currently handed out
	limit   int
	nextPFN uint64
	allocs  int
}

// NewAllocator creates a pool of at most limit pages. limit <= 0 means unbounded.
func NewAllocator(limit int) *Allocator {
	return &Allocator{
		free:  arraystack.New(),
		inUse: hashset.New(),
		limit: limit,
	}
}

// GetFreePageTop returns a zeroed page, or ErrOutOfMemory once limit pages are in use.
func (a *Allocator) GetFreePageTop(flags GFP) (*Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.limit > 0 && a.inUse.Size() >= a.limit {
		return nil, ErrOutOfMemory
	}

	var p *Page
	if v, ok := a.free.Pop(); ok {
		p = v.(*Page)
		p.Data = [PageSize]byte{}
	} else {
		p = &Page{pfn: a.nextPFN}
		a.nextPFN++
	}
	p.Flags = flags
	a.inUse.Add(p.pfn)
	a.allocs++
	return p, nil
}

// PutPageTop returns a page to the pool. Releasing a page twice is a bug.
func (a *Allocator) PutPageTop(p *Page) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.inUse.Contains(p.pfn) {
		panic(fmt.Sprintf("mm: page %d released twice", p.pfn))
	}
	a.inUse.Remove(p.pfn)
	a.free.Push(p)
}

// InUse reports how many pages are currently handed out.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse.Size()
}

// Allocations reports the total number of successful GetFreePageTop calls.
func (a *Allocator) Allocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}
