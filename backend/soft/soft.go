// Package soft is the software decoder backend: every access unit goes
// through the shared bitstream context on the CPU. It has no external
// dependency, so selecting it can never fail.
package soft

import (
	"time"

	"github.com/google/uuid"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/utils"
)

// Decoder decodes entirely in software through the shared bitstream context.
type Decoder struct {
	ctx govdec.BitstreamContext
}

func New(ctx govdec.BitstreamContext) *Decoder {
	return &Decoder{ctx: ctx}
}

// Decode hands one stretch of compressed data to the bitstream context.
func (d *Decoder) Decode(data []byte, start, stop time.Duration, out govdec.Sample) (int, error) {
	d.ctx.UpdateTime(start, stop)
	return d.ctx.Decode(data, out)
}

// Flush has nothing of its own to drop; the stage flushes the shared
// bitstream context.
func (d *Decoder) Flush() error {
	return nil
}

// DisplayNextFrame is unsupported: the software path has no presentation
// facility, the stage delivers decoded samples itself.
func (d *Decoder) DisplayNextFrame(govdec.Sample) error {
	return &utils.UnimplementedError{}
}

// NeedsCustomAllocator reports that plain memory samples suffice.
func (d *Decoder) NeedsCustomAllocator() bool {
	return false
}

// DecoderID returns Nil: software decoding has no accelerator profile.
func (d *Decoder) DecoderID() uuid.UUID {
	return uuid.Nil
}

// Close releases nothing; the bitstream context belongs to the stage.
func (d *Decoder) Close() {
}

func (d *Decoder) String() string {
	return "SW_DECODER"
}
