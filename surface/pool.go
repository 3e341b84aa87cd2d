package surface

import (
	"fmt"
	"sync"

	"github.com/ugparu/govdec/accel"
	"github.com/ugparu/govdec/utils/logger"
)

// CreateFunc builds the hardware resource backing one surface index.
type CreateFunc func(index int) (accel.SurfaceHandle, error)

// FlushFunc drains the hardware decoder owning the pool so pending decode
// operations drop their surface references before surfaces are destroyed.
type FlushFunc func()

// Pool is a fixed-capacity surface allocator tied to one hardware decoder
// instance. Capacity never changes for the pool's lifetime; resizing means
// tearing down and recreating both the pool and the decoder.
type Pool struct {
	mu        sync.Mutex
	capacity  int
	create    CreateFunc
	flush     FlushFunc
	surfaces  []*Surface
	allocated int
}

// NewPool builds an empty pool of the given capacity.
func NewPool(capacity int, create CreateFunc, flush FlushFunc) *Pool {
	return &Pool{
		capacity: capacity,
		create:   create,
		flush:    flush,
		surfaces: make([]*Surface, capacity),
	}
}

// Capacity returns the fixed pool capacity.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Allocated returns the number of live surfaces.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Allocate builds count surfaces. Important: surfaces are created in reverse
// index order, native surface construction downstream is order-sensitive.
// Any single creation failure unwinds the whole batch.
func (p *Pool) Allocate(count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if count < 0 || count > p.capacity {
		return fmt.Errorf("surface count %d exceeds pool capacity %d", count, p.capacity)
	}

	// Free the old resources.
	p.freeLocked()

	for index := count - 1; index >= 0; index-- {
		handle, err := p.create(index)
		if err != nil {
			p.freeLocked()
			return fmt.Errorf("create surface %d: %w", index, err)
		}
		p.surfaces[index] = newSurface(index, handle)
		p.allocated++
	}

	logger.Debugf(p, "Allocated %d decode surfaces", count)
	return nil
}

// Free flushes the owning decoder, then releases every surface. Idempotent
// and safe on a partially built pool.
func (p *Pool) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeLocked()
}

func (p *Pool) freeLocked() {
	if p.flush != nil {
		p.flush()
	}
	for i, s := range p.surfaces {
		if s == nil {
			continue
		}
		s.Release()
		p.surfaces[i] = nil
	}
	p.allocated = 0
}

// Surface returns the surface at index, or nil when the index lies outside
// the pool or the surface is not allocated.
func (p *Pool) Surface(index int) *Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= p.capacity {
		return nil
	}
	return p.surfaces[index]
}

func (p *Pool) String() string {
	return fmt.Sprintf("SURFACE_POOL cap=%d", p.capacity)
}
