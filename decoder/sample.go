package decoder

import (
	"time"

	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/surface"
	"github.com/ugparu/govdec/utils"
)

// memSample is a plain memory sample used on the software and generation-1
// paths, and for compressed input handed in by the host transport.
type memSample struct {
	buf     *utils.Buffer
	length  int
	start   time.Duration
	stop    time.Duration
	media   bool
	release func(s *memSample)
}

func (s *memSample) Data() []byte {
	return s.buf.Buffer
}

func (s *memSample) Len() int {
	return s.length
}

func (s *memSample) SetLen(n int) {
	s.buf.Grow(n)
	s.length = n
}

func (s *memSample) Time() (start, stop time.Duration) {
	return s.start, s.stop
}

func (s *memSample) SetTime(start, stop time.Duration) {
	s.start = start
	s.stop = stop
}

func (s *memSample) IsMedia() bool {
	return s.media
}

func (s *memSample) Release() {
	if s.release != nil {
		s.release(s)
	}
}

// NewMediaSample wraps a compressed payload into a media sample whose
// backing buffer carries pad bytes of zero slack, satisfying the engine's
// input padding contract. Timestamps start out unknown.
func NewMediaSample(payload []byte, pad int) govdec.Sample {
	buf := utils.GetBuffer(len(payload) + pad)
	copy(buf.Buffer, payload)
	clear(buf.Buffer[len(payload):])
	return &memSample{
		buf:    buf,
		length: len(payload),
		start:  govdec.TimeUnknown,
		stop:   govdec.TimeUnknown,
		media:  true,
		release: func(s *memSample) {
			utils.PutBuffer(s.buf)
		},
	}
}

// NewControlSample builds a non-media sample the stage forwards verbatim.
func NewControlSample(payload []byte) govdec.Sample {
	buf := utils.GetBuffer(len(payload))
	copy(buf.Buffer, payload)
	return &memSample{
		buf:    buf,
		length: len(payload),
		start:  govdec.TimeUnknown,
		stop:   govdec.TimeUnknown,
		release: func(s *memSample) {
			utils.PutBuffer(s.buf)
		},
	}
}

// surfaceSample lends one pool surface to the downstream renderer for the
// sample's lifetime. It carries no system memory.
type surfaceSample struct {
	surf  *surface.Surface
	start time.Duration
	stop  time.Duration
	alloc *surfaceAllocator
}

func (s *surfaceSample) Data() []byte {
	return nil
}

func (s *surfaceSample) Len() int {
	return 0
}

func (s *surfaceSample) SetLen(int) {
}

func (s *surfaceSample) Time() (start, stop time.Duration) {
	return s.start, s.stop
}

func (s *surfaceSample) SetTime(start, stop time.Duration) {
	s.start = start
	s.stop = stop
}

func (s *surfaceSample) IsMedia() bool {
	return true
}

// Surface exposes the borrowed decode target to the hardware backend and
// the renderer.
func (s *surfaceSample) Surface() *surface.Surface {
	return s.surf
}

func (s *surfaceSample) Release() {
	s.alloc.put(s)
}
