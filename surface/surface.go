// Package surface owns the bounded pool of hardware decode-target surfaces
// a generation-2 backend renders into. Surfaces are lent to output samples
// by reference and returned to the pool only when every holder has released
// them.
package surface

import (
	"sync/atomic"

	"github.com/ugparu/govdec/accel"
)

// Surface is one pool-owned decode target: a small index plus the opaque
// handle of the underlying hardware resource. Never copied, only referenced.
type Surface struct {
	index  int
	handle accel.SurfaceHandle
	refs   atomic.Int32
}

func newSurface(index int, handle accel.SurfaceHandle) *Surface {
	s := &Surface{index: index, handle: handle}
	s.refs.Store(1)
	return s
}

// Index returns the surface's position in the pool.
func (s *Surface) Index() int {
	return s.index
}

// Handle returns the underlying hardware resource.
func (s *Surface) Handle() accel.SurfaceHandle {
	return s.handle
}

// Acquire adds a holder, typically an output sample borrowing the surface
// for its lifetime.
func (s *Surface) Acquire() *Surface {
	s.refs.Add(1)
	return s
}

// Release drops one holder. The hardware resource is released exactly once,
// when the last holder lets go.
func (s *Surface) Release() {
	if s.refs.Add(-1) == 0 {
		s.handle.Release()
	}
}
