// Package govdec implements the decode stage of an H.264 playback pipeline.
// The stage selects among two generations of hardware acceleration and a
// software fallback, negotiates surface formats and counts with the
// downstream renderer, owns a bounded pool of decode-target surfaces and
// serializes the per-sample decode loop against control operations.
package govdec

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ugparu/govdec/format"
)

// ErrNeedMoreData is returned by a backend whose accelerator buffered the
// compressed data without producing a picture yet. The stage treats it as a
// successful, delivery-free receive.
var ErrNeedMoreData = errors.New("need more data to decode frame")

// TimeUnknown marks a timestamp the upstream demuxer could not determine.
const TimeUnknown = time.Duration(math.MinInt64)

// Sample is one buffer travelling through the pipeline. Implementations
// guarantee that the backing array of Data extends at least the engine's
// input padding size past Len, so parsers may read slightly beyond the
// declared payload.
type Sample interface {
	Data() []byte               // Returns the backing buffer.
	Len() int                   // Returns the declared payload length.
	SetLen(n int)               // Sets the declared payload length.
	Time() (start, stop time.Duration) // Returns the presentation timestamp pair.
	SetTime(start, stop time.Duration) // Sets the presentation timestamp pair.
	IsMedia() bool              // False for control samples forwarded verbatim.
	Release()                   // Returns the sample to its allocator.
}

// StreamInfo is the parsed-stream view consulted by the hardware
// compatibility policy and by buffer-size negotiation.
type StreamInfo struct {
	Width         int           // Coded frame width in pixels.
	Height        int           // Coded frame height in pixels.
	Level         int           // Codec level, -1 until a sequence header is seen.
	RefFrames     int           // Reference frame count declared by the stream.
	FrameDuration time.Duration // Nominal frame duration, zero when unknown.
}

// BitstreamContext parses access-unit headers and drives the opaque entropy
// decoder. Owned by the stage, reset on input disconnection and flushed on
// segment boundaries.
type BitstreamContext interface {
	Info() StreamInfo                  // Returns the current parsed-stream parameters.
	UpdateTime(start, stop time.Duration) // Records the timestamp pair of the pending data.
	Decode(data []byte, out Sample) (int, error) // Decodes one access unit into out.
	Flush()                            // Drops buffered state at a segment boundary.
	Close()                            // Releases the context.
}

// CodecEngine creates bitstream contexts and declares the input contract of
// the external codec. Injected into the stage at construction.
type CodecEngine interface {
	SupportsSubtype(f format.MediaFormat) bool       // Reports whether the input subtype is decodable.
	InputPaddingSize() int                           // Required zero slack after each payload.
	NewContext(f format.MediaFormat) (BitstreamContext, error) // Builds a context for a connected input.
}

// Backend is the decoding strategy active for one output connection.
// Software and the two hardware generations differ only in implementation,
// never in contract.
type Backend interface {
	Decode(data []byte, start, stop time.Duration, out Sample) (int, error) // Decodes, returns bytes consumed.
	Flush() error                 // Drops in-flight accelerator state.
	DisplayNextFrame(out Sample) error // Presents the next ready picture; UnimplementedError defers to the stage.
	NeedsCustomAllocator() bool   // True when output samples must wrap pool surfaces.
	DecoderID() uuid.UUID         // Identifies the negotiated decoder device, Nil for software.
	Close()                       // Releases the backend and its hardware resources.
}

// Downstream is the stage's view of the connected renderer.
type Downstream interface {
	Deliver(s Sample) error // Hands one decoded picture to the renderer.
}

// AllocatorProperties mirror the downstream buffer-pool negotiation knobs.
type AllocatorProperties struct {
	Count  int // Number of samples in the pool.
	Size   int // Byte size of each sample buffer.
	Align  int // Buffer alignment requirement.
	Prefix int // Bytes reserved ahead of each buffer.
}

// Allocator hands out output samples for decoded pictures.
type Allocator interface {
	SetProperties(req AllocatorProperties) (AllocatorProperties, error) // Negotiates pool shape, returns what was granted.
	Sample() (Sample, error) // Fetches one free sample.
	Close()                  // Releases the pool.
}
