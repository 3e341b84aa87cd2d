// Package va1 is the generation-1 hardware backend. The downstream renderer
// owns the uncompressed surfaces; the backend drives the accelerator's
// begin/execute/end cycle and asks the renderer to display finished frames.
package va1

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/accel"
	"github.com/ugparu/govdec/utils/logger"
)

// Decoder decodes through a generation-1 video accelerator.
type Decoder struct {
	id            uuid.UUID
	ctx           govdec.BitstreamContext
	accel         accel.VideoAccelerator
	surfaceCount  int
	pixelFormat   accel.PixelFormat
	frameDuration time.Duration
	next          int
	pending       []int
	initialized   bool
}

// New records the negotiated accelerator binding. The backend stays inert
// until Init succeeds; the selector discards it otherwise.
func New(id uuid.UUID, ctx govdec.BitstreamContext, va accel.VideoAccelerator, surfaceCount int) *Decoder {
	return &Decoder{
		id:           id,
		ctx:          ctx,
		accel:        va,
		surfaceCount: surfaceCount,
	}
}

// Init binds the pixel format and timing negotiated with the renderer.
func (d *Decoder) Init(pf accel.PixelFormat, frameDuration time.Duration) error {
	if d.surfaceCount <= 0 {
		return fmt.Errorf("no uncompressed surfaces negotiated")
	}
	d.pixelFormat = pf
	d.frameDuration = frameDuration
	d.initialized = true
	logger.Debugf(d, "Initialized with %d surfaces, format %s", d.surfaceCount, pf.FourCC)
	return nil
}

// Decode runs one accelerator cycle targeting the next surface in rotation.
func (d *Decoder) Decode(data []byte, start, stop time.Duration, out govdec.Sample) (int, error) {
	if !d.initialized {
		return 0, fmt.Errorf("accelerator not initialized")
	}

	d.ctx.UpdateTime(start, stop)

	target := d.next
	if err := d.accel.BeginFrame(target); err != nil {
		return 0, fmt.Errorf("begin frame on surface %d: %w", target, err)
	}
	if err := d.accel.Execute([][]byte{data}); err != nil {
		_ = d.accel.EndFrame()
		if errors.Is(err, govdec.ErrNeedMoreData) {
			return len(data), govdec.ErrNeedMoreData
		}
		return 0, fmt.Errorf("execute: %w", err)
	}
	if err := d.accel.EndFrame(); err != nil {
		return 0, fmt.Errorf("end frame: %w", err)
	}

	d.next = (d.next + 1) % d.surfaceCount
	d.pending = append(d.pending, target)
	out.SetTime(start, stop)
	return len(data), nil
}

// DisplayNextFrame asks the renderer to present the oldest finished surface.
// The renderer displays directly, so the stage must not deliver the sample.
func (d *Decoder) DisplayNextFrame(govdec.Sample) error {
	if len(d.pending) == 0 {
		return nil
	}
	target := d.pending[0]
	d.pending = d.pending[1:]
	return d.accel.DisplayFrame(target)
}

// Flush forgets in-flight surfaces; the renderer reclaims them on its own
// segment boundary.
func (d *Decoder) Flush() error {
	d.pending = d.pending[:0]
	d.next = 0
	return nil
}

// NeedsCustomAllocator reports that the renderer's surfaces are used
// directly; no pool-backed samples are required.
func (d *Decoder) NeedsCustomAllocator() bool {
	return false
}

// DecoderID returns the accelerator profile this backend was bound to.
func (d *Decoder) DecoderID() uuid.UUID {
	return d.id
}

// Close drops the accelerator binding.
func (d *Decoder) Close() {
	d.initialized = false
	d.pending = nil
}

func (d *Decoder) String() string {
	return fmt.Sprintf("VA1_DECODER %s", d.id)
}
