package decoder

import (
	"sync"

	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/utils"
)

// memoryAllocator hands out pooled system memory samples for the software
// and generation-1 outputs.
type memoryAllocator struct {
	mu    sync.Mutex
	props govdec.AllocatorProperties
	free  []*memSample
}

func newMemoryAllocator() *memoryAllocator {
	return &memoryAllocator{}
}

func (a *memoryAllocator) SetProperties(req govdec.AllocatorProperties) (govdec.AllocatorProperties, error) {
	if req.Count < 1 || req.Size < 1 {
		return govdec.AllocatorProperties{}, &utils.OutOfRangeError{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.free {
		utils.PutBuffer(s.buf)
	}
	a.free = a.free[:0]
	a.props = req
	for range req.Count {
		a.free = append(a.free, a.newSample())
	}

	return req, nil
}

func (a *memoryAllocator) newSample() *memSample {
	return &memSample{
		buf:   utils.GetBuffer(a.props.Size + a.props.Prefix),
		media: true,
		start: govdec.TimeUnknown,
		stop:  govdec.TimeUnknown,
		release: func(s *memSample) {
			a.mu.Lock()
			a.free = append(a.free, s)
			a.mu.Unlock()
		},
	}
}

func (a *memoryAllocator) Sample() (govdec.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.props.Size < 1 {
		return nil, &utils.NotConnectedError{}
	}
	if n := len(a.free); n > 0 {
		s := a.free[n-1]
		a.free = a.free[:n-1]
		s.length = 0
		s.start = govdec.TimeUnknown
		s.stop = govdec.TimeUnknown
		return s, nil
	}
	// Downstream still holds every pooled sample, grow past the committed
	// count rather than stall the streaming thread.
	return a.newSample(), nil
}

func (a *memoryAllocator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.free {
		utils.PutBuffer(s.buf)
	}
	a.free = nil
	a.props = govdec.AllocatorProperties{}
}

// surfaceAllocator wraps the stage's decode surface pool into samples for
// the generation-2 path. Each sample is bound to one surface for the
// allocator's whole lifetime.
type surfaceAllocator struct {
	mu    sync.Mutex
	stage *Stage
	props govdec.AllocatorProperties
	free  []*surfaceSample
}

func newSurfaceAllocator(stage *Stage) *surfaceAllocator {
	return &surfaceAllocator{stage: stage}
}

// SetProperties binds one sample per decode surface. Samples are built from
// the highest surface index down so that the free list pops them in surface
// order.
func (a *surfaceAllocator) SetProperties(req govdec.AllocatorProperties) (govdec.AllocatorProperties, error) {
	if req.Count < 1 {
		return govdec.AllocatorProperties{}, &utils.OutOfRangeError{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseLocked()

	count := req.Count
	if limit := a.stage.surfaceCapacity(); count > limit {
		count = limit
	}
	for index := count - 1; index >= 0; index-- {
		surf := a.stage.poolSurface(index)
		if surf == nil {
			a.releaseLocked()
			return govdec.AllocatorProperties{}, &utils.OutOfRangeError{}
		}
		a.free = append(a.free, &surfaceSample{
			surf:  surf.Acquire(),
			start: govdec.TimeUnknown,
			stop:  govdec.TimeUnknown,
			alloc: a,
		})
	}

	req.Count = count
	a.props = req
	return req, nil
}

func (a *surfaceAllocator) Sample() (govdec.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.free)
	if n == 0 {
		return nil, &utils.OutOfRangeError{}
	}
	s := a.free[n-1]
	a.free = a.free[:n-1]
	s.start = govdec.TimeUnknown
	s.stop = govdec.TimeUnknown
	return s, nil
}

func (a *surfaceAllocator) put(s *surfaceSample) {
	a.mu.Lock()
	a.free = append(a.free, s)
	a.mu.Unlock()
}

func (a *surfaceAllocator) releaseLocked() {
	for _, s := range a.free {
		s.surf.Release()
	}
	a.free = nil
}

func (a *surfaceAllocator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseLocked()
	a.props = govdec.AllocatorProperties{}
}
