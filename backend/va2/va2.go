// Package va2 is the generation-2 hardware backend. The stage allocates the
// decode-target surface pool, output samples arrive already wrapping a pool
// surface, and the created hardware decoder renders into them.
package va2

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/accel"
	"github.com/ugparu/govdec/surface"
	"github.com/ugparu/govdec/utils"
)

// Surfaced is implemented by output samples carrying a pool surface.
type Surfaced interface {
	Surface() *surface.Surface
}

// Decoder decodes through a created generation-2 hardware decoder instance.
type Decoder struct {
	id     uuid.UUID
	ctx    govdec.BitstreamContext
	hw     accel.VideoDecoder
	device *accel.SharedDeviceHandle
	pool   *surface.Pool
}

// New wraps a created hardware decoder. The backend takes ownership of the
// passed device handle reference and of the pool.
func New(id uuid.UUID, ctx govdec.BitstreamContext, hw accel.VideoDecoder,
	device *accel.SharedDeviceHandle, pool *surface.Pool) *Decoder {
	return &Decoder{
		id:     id,
		ctx:    ctx,
		hw:     hw,
		device: device,
		pool:   pool,
	}
}

// Decode renders one stretch of compressed data into the surface carried by
// the output sample.
func (d *Decoder) Decode(data []byte, start, stop time.Duration, out govdec.Sample) (int, error) {
	surfaced, ok := out.(Surfaced)
	if !ok || surfaced.Surface() == nil {
		return 0, fmt.Errorf("output sample carries no decode surface")
	}

	d.ctx.UpdateTime(start, stop)

	target := surfaced.Surface()
	if err := d.hw.BeginFrame(target.Handle()); err != nil {
		return 0, fmt.Errorf("begin frame on surface %d: %w", target.Index(), err)
	}
	if err := d.hw.Execute([][]byte{data}); err != nil {
		_ = d.hw.EndFrame()
		if errors.Is(err, govdec.ErrNeedMoreData) {
			return len(data), govdec.ErrNeedMoreData
		}
		return 0, fmt.Errorf("execute: %w", err)
	}
	if err := d.hw.EndFrame(); err != nil {
		return 0, fmt.Errorf("end frame: %w", err)
	}

	out.SetTime(start, stop)
	return len(data), nil
}

// DisplayNextFrame is unsupported: decoded surfaces travel to the renderer
// as delivered samples.
func (d *Decoder) DisplayNextFrame(govdec.Sample) error {
	return &utils.UnimplementedError{}
}

// Flush drains pending hardware decode operations so surfaces drop their
// in-flight references.
func (d *Decoder) Flush() error {
	return d.hw.Flush()
}

// NeedsCustomAllocator reports that output samples must wrap pool surfaces.
func (d *Decoder) NeedsCustomAllocator() bool {
	return true
}

// DecoderID returns the decoder device this backend was created for.
func (d *Decoder) DecoderID() uuid.UUID {
	return d.id
}

// Close tears down the hardware decoder, then the surface pool, then drops
// the shared device handle.
func (d *Decoder) Close() {
	d.hw.Flush()
	d.hw.Close()
	d.pool.Free()
	d.device.Release()
}

func (d *Decoder) String() string {
	return fmt.Sprintf("VA2_DECODER %s", d.id)
}
