package surface_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/govdec/accel"
	"github.com/ugparu/govdec/surface"
)

type stubHandle struct {
	index    int
	released int
}

func (h *stubHandle) Release() {
	h.released++
}

type handleTracker struct {
	created []*stubHandle
	failAt  int
}

func newHandleTracker() *handleTracker {
	return &handleTracker{failAt: -1}
}

func (t *handleTracker) create(index int) (accel.SurfaceHandle, error) {
	if index == t.failAt {
		return nil, errors.New("out of video memory")
	}
	h := &stubHandle{index: index}
	t.created = append(t.created, h)
	return h, nil
}

func TestPoolAllocateFree(t *testing.T) {
	t.Parallel()

	tracker := newHandleTracker()
	flushes := 0
	pool := surface.NewPool(4, tracker.create, func() { flushes++ })

	require.Equal(t, 4, pool.Capacity())
	require.NoError(t, pool.Allocate(4))
	require.Equal(t, 4, pool.Allocated())

	// Creation runs from the highest index down.
	require.Len(t, tracker.created, 4)
	for i, h := range tracker.created {
		require.Equal(t, 3-i, h.index)
	}

	pool.Free()
	require.Equal(t, 0, pool.Allocated())
	for _, h := range tracker.created {
		require.Equal(t, 1, h.released)
	}

	// The decoder is drained on every free, including the one Allocate runs
	// before building.
	require.Equal(t, 2, flushes)

	// Freeing again must not double-release anything.
	pool.Free()
	for _, h := range tracker.created {
		require.Equal(t, 1, h.released)
	}
}

func TestPoolAllocateUnwindsOnFailure(t *testing.T) {
	t.Parallel()

	tracker := newHandleTracker()
	tracker.failAt = 1
	pool := surface.NewPool(4, tracker.create, nil)

	require.Error(t, pool.Allocate(4))
	require.Equal(t, 0, pool.Allocated())

	// Indices 3 and 2 were built before the failure and must be unwound.
	require.Len(t, tracker.created, 2)
	for _, h := range tracker.created {
		require.Equal(t, 1, h.released)
	}
	require.Nil(t, pool.Surface(3))
}

func TestPoolAllocateRejectsBadCount(t *testing.T) {
	t.Parallel()

	pool := surface.NewPool(2, newHandleTracker().create, nil)
	require.Error(t, pool.Allocate(3))
	require.Error(t, pool.Allocate(-1))
	require.NoError(t, pool.Allocate(2))
}

func TestPoolSurfaceLookup(t *testing.T) {
	t.Parallel()

	tracker := newHandleTracker()
	pool := surface.NewPool(2, tracker.create, nil)
	require.NoError(t, pool.Allocate(2))

	s := pool.Surface(1)
	require.NotNil(t, s)
	require.Equal(t, 1, s.Index())

	require.Nil(t, pool.Surface(-1))
	require.Nil(t, pool.Surface(2))
}

func TestSurfaceReferenceCounting(t *testing.T) {
	t.Parallel()

	tracker := newHandleTracker()
	pool := surface.NewPool(1, tracker.create, nil)
	require.NoError(t, pool.Allocate(1))

	s := pool.Surface(0).Acquire()
	pool.Free()

	// The borrowed reference keeps the hardware handle alive.
	h := tracker.created[0]
	require.Equal(t, 0, h.released)

	s.Release()
	require.Equal(t, 1, h.released)
}