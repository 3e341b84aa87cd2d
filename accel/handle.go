package accel

import (
	"sync/atomic"
)

// SharedDeviceHandle is a ref-counted accelerator device handle shared
// between the stage and the active hardware backend. The close callback
// runs exactly once, when the last holder releases.
type SharedDeviceHandle struct {
	value   any
	refs    atomic.Int32
	closeFn func()
}

// NewSharedDeviceHandle wraps an opaque device value. The caller holds the
// first reference.
func NewSharedDeviceHandle(value any, closeFn func()) *SharedDeviceHandle {
	h := &SharedDeviceHandle{value: value, closeFn: closeFn}
	h.refs.Store(1)
	return h
}

// Value returns the opaque device value.
func (h *SharedDeviceHandle) Value() any {
	return h.value
}

// Acquire adds a holder and returns the handle for chaining.
func (h *SharedDeviceHandle) Acquire() *SharedDeviceHandle {
	h.refs.Add(1)
	return h
}

// Release drops one holder. The final release invokes the close callback.
func (h *SharedDeviceHandle) Release() {
	if h.refs.Add(-1) == 0 && h.closeFn != nil {
		h.closeFn()
	}
}
