// Package h264 implements the codec-engine contract for H.264 input: it
// recognizes compressed input subtypes, extracts stream parameters from AVC
// configuration records and in-band sequence headers, and drives the opaque
// entropy decoder supplied by the host.
package h264

import (
	"github.com/google/uuid"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/format"
	"github.com/ugparu/govdec/utils"
)

// EntropyDecoder is the opaque byte-level H.264 decoder a context drives.
// Implementations wrap a real codec; the stage never looks inside. Decode
// may legitimately consume data without producing a picture when the codec
// reorders frames.
type EntropyDecoder interface {
	Decode(data, out []byte) (consumed int, frame bool, err error)
	Flush()
	Close()
}

// Input buffers must carry this much zero slack after the payload; the
// parser may read past the logical end of an access unit.
const inputBufferPadding = 64

// Engine creates H.264 bitstream contexts around an injected entropy
// decoder factory.
type Engine struct {
	newDecoder func() EntropyDecoder
}

func NewEngine(newDecoder func() EntropyDecoder) *Engine {
	return &Engine{newDecoder: newDecoder}
}

// inputSubtypes lists the compression codes encoders stamp on H.264
// elementary streams, in both casings drivers use.
var inputSubtypes = func() map[uuid.UUID]struct{} {
	codes := []string{"AVC1", "avc1", "H264", "h264", "X264", "x264"}
	set := make(map[uuid.UUID]struct{}, len(codes))
	for _, c := range codes {
		set[format.SubtypeFromFourCC(format.MakeFourCC(c[0], c[1], c[2], c[3]))] = struct{}{}
	}
	return set
}()

// SupportsSubtype reports whether the input format carries an H.264
// elementary stream.
func (e *Engine) SupportsSubtype(f format.MediaFormat) bool {
	_, ok := inputSubtypes[f.Subtype]
	return ok
}

// InputPaddingSize returns the zero slack required after each input payload.
func (e *Engine) InputPaddingSize() int {
	return inputBufferPadding
}

// NewContext builds a bitstream context for a connected input. Stream
// parameters are seeded from the format's configuration record when one is
// present and refined from in-band sequence headers during decoding.
func (e *Engine) NewContext(f format.MediaFormat) (govdec.BitstreamContext, error) {
	if e.newDecoder == nil {
		return nil, &utils.NoCodecDataError{}
	}

	ctx := &Context{
		dec: e.newDecoder(),
		info: govdec.StreamInfo{
			Width:         f.Width,
			Height:        f.Height,
			Level:         levelUnknown,
			FrameDuration: f.FrameDuration,
		},
	}

	if len(f.Extra) > 0 {
		var record AVCDecoderConfRecord
		if _, err := record.Unmarshal(f.Extra); err != nil {
			return nil, err
		}
		ctx.info.Level = int(record.AVCLevelIndication)
		for _, sps := range record.SPS {
			ctx.applySPS(sps)
		}
	}

	return ctx, nil
}
