// Package decoder implements the compressed-video decode stage: input and
// output format negotiation, hardware acceleration selection across two
// accelerator generations with a software fallback, buffer negotiation and
// the streaming receive loop.
package decoder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/accel"
	"github.com/ugparu/govdec/backend/soft"
	"github.com/ugparu/govdec/backend/va1"
	"github.com/ugparu/govdec/format"
	"github.com/ugparu/govdec/hwcompat"
	"github.com/ugparu/govdec/surface"
	"github.com/ugparu/govdec/utils"
	"github.com/ugparu/govdec/utils/logger"
)

// defaultFrameDuration substitutes for inputs that do not declare an
// average frame duration.
const defaultFrameDuration = 40 * time.Millisecond

// Stage is one compressed-video decode stage. It is built disconnected;
// the host wires it through the connection methods, then drives it with
// Receive on a single streaming goroutine.
type Stage struct {
	decodeAccess sync.Mutex

	engine govdec.CodecEngine
	env    hwcompat.Provider

	inputFormat  format.MediaFormat
	inputSet     bool
	outputFormat format.MediaFormat
	outputSet    bool
	candidates   []format.MediaFormat

	avgFrameDuration time.Duration

	ctx        govdec.BitstreamContext
	backend    govdec.Backend
	downstream govdec.Downstream

	pendingVA1      *va1.Decoder
	va1DeviceID     uuid.UUID
	va1PixelFormat  accel.PixelFormat
	va1SurfaceCount int

	device *accel.SharedDeviceHandle
	pool   *surface.Pool

	outputAlloc govdec.Allocator
	scratch     *utils.Buffer
}

// NewStage builds a disconnected stage around a codec engine and a
// hardware environment.
func NewStage(engine govdec.CodecEngine, env hwcompat.Provider) *Stage {
	return &Stage{
		engine: engine,
		env:    env,
	}
}

// CheckInputType reports whether the stage can decode the offered input.
func (s *Stage) CheckInputType(f format.MediaFormat) error {
	if f.Type != format.TypeVideo {
		return &utils.TypeNotAcceptedError{}
	}
	if f.Width < 1 || f.Height < 1 {
		return &utils.TypeNotAcceptedError{}
	}
	if !s.engine.SupportsSubtype(f) {
		return &utils.TypeNotAcceptedError{}
	}
	return nil
}

// SetInputFormat accepts the input format and seeds the output candidate
// list from it.
func (s *Stage) SetInputFormat(f format.MediaFormat) error {
	if err := s.CheckInputType(f); err != nil {
		return err
	}
	s.inputFormat = f
	s.inputSet = true
	s.avgFrameDuration = f.FrameDuration
	if s.avgFrameDuration <= 0 {
		s.avgFrameDuration = defaultFrameDuration
	}
	s.candidates = format.BuildOutputFormats(f)
	logger.Debugf(s, "Input format set: %v", &f)
	return nil
}

// CompleteConnectInput finishes the input connection by building the
// bitstream context for the accepted format.
func (s *Stage) CompleteConnectInput() error {
	if !s.inputSet {
		return &utils.NotConnectedError{}
	}
	ctx, err := s.engine.NewContext(s.inputFormat)
	if err != nil {
		logger.Errorf(s, "Building bitstream context failed: %v", err)
		return &utils.TypeNotAcceptedError{}
	}
	s.ctx = ctx
	return nil
}

// BreakConnectInput undoes the input connection and tears down everything
// built on top of it.
func (s *Stage) BreakConnectInput() {
	s.decodeAccess.Lock()
	defer s.decodeAccess.Unlock()

	s.releaseBackend()
	if s.ctx != nil {
		s.ctx.Close()
		s.ctx = nil
	}
	s.inputSet = false
	s.candidates = nil
}

// OutputFormat enumerates the output candidates derived from the input.
func (s *Stage) OutputFormat(position int) (format.MediaFormat, error) {
	if !s.inputSet {
		return format.MediaFormat{}, &utils.NotConnectedError{}
	}
	if position < 0 || position >= len(s.candidates) {
		return format.MediaFormat{}, &utils.OutOfRangeError{}
	}
	return s.candidates[position], nil
}

// CheckTransform reports whether the input format can be converted to the
// proposed output format.
func (s *Stage) CheckTransform(in, out format.MediaFormat) error {
	return format.CheckTransform(in, out)
}

// SetOutputFormat accepts the output format the downstream agreed to.
func (s *Stage) SetOutputFormat(f format.MediaFormat) error {
	if !s.inputSet {
		return &utils.NotConnectedError{}
	}
	if err := format.CheckTransform(s.inputFormat, f); err != nil {
		return err
	}
	s.outputFormat = f
	s.outputSet = true
	return nil
}

// ConnectOutput attaches the downstream consumer. Acceleration interfaces
// are discovered from it during connection completion.
func (s *Stage) ConnectOutput(d govdec.Downstream) error {
	if d == nil {
		return &utils.NotConnectedError{}
	}
	s.downstream = d
	return nil
}

// CompleteConnectOutput selects the decode backend: a pre-negotiated
// generation-1 device first, then generation-2 enumeration, then software.
func (s *Stage) CompleteConnectOutput() error {
	if s.downstream == nil || !s.outputSet {
		return &utils.NotConnectedError{}
	}
	if s.ctx == nil {
		return &utils.NotConnectedError{}
	}

	s.releaseBackend()

	if pending := s.pendingVA1; pending != nil {
		s.pendingVA1 = nil
		if err := pending.Init(s.va1PixelFormat, s.avgFrameDuration); err != nil {
			logger.Warningf(s, "Generation-1 activation failed: %v", err)
			pending.Close()
		} else {
			s.backend = pending
			logger.Infof(s, "Decoding on generation-1 device %v", pending.DecoderID())
			return nil
		}
	}

	if err := s.activateGen2(); err != nil {
		logger.Infof(s, "Hardware acceleration unavailable, decoding in software: %v", err)
		s.backend = soft.New(s.ctx)
	}
	return nil
}

// BreakConnectOutput undoes the output connection.
func (s *Stage) BreakConnectOutput() {
	s.decodeAccess.Lock()
	defer s.decodeAccess.Unlock()

	s.releaseBackend()
	s.pendingVA1 = nil
	s.va1SurfaceCount = 0
	s.downstream = nil
	s.outputSet = false
}

// NeedsCustomAllocator reports whether decoded pictures must live in
// externally allocated decode surfaces.
func (s *Stage) NeedsCustomAllocator() bool {
	return s.backend != nil && s.backend.NeedsCustomAllocator()
}

// InitAllocator builds the output allocator matching the active backend.
func (s *Stage) InitAllocator() (govdec.Allocator, error) {
	if s.outputAlloc != nil {
		s.outputAlloc.Close()
	}
	if s.NeedsCustomAllocator() {
		s.outputAlloc = newSurfaceAllocator(s)
	} else {
		s.outputAlloc = newMemoryAllocator()
	}
	return s.outputAlloc, nil
}

// DecideBufferSize fixes the output allocator properties: the negotiated
// surface count on the hardware surface path, otherwise at least one buffer
// of the output image size.
func (s *Stage) DecideBufferSize(alloc govdec.Allocator, req govdec.AllocatorProperties) error {
	if alloc == nil || !s.outputSet {
		return &utils.NotConnectedError{}
	}
	if req.Count < 1 {
		req.Count = 1
	}
	if s.NeedsCustomAllocator() {
		req.Count = s.surfaceCapacity()
	}
	if req.Size < s.outputFormat.ImageSize {
		req.Size = s.outputFormat.ImageSize
	}
	if req.Align < 1 {
		req.Align = 1
	}

	granted, err := alloc.SetProperties(req)
	if err != nil {
		return err
	}
	if granted.Count < req.Count || granted.Size < req.Size {
		return &utils.OutOfRangeError{}
	}
	return nil
}

// NewSegment resets decode state at a stream discontinuity.
func (s *Stage) NewSegment(start, stop time.Duration, rate float64) error {
	s.decodeAccess.Lock()
	defer s.decodeAccess.Unlock()

	if s.ctx != nil {
		s.ctx.Flush()
	}
	if s.backend != nil {
		return s.backend.Flush()
	}
	return nil
}

// Receive decodes one compressed sample and delivers any completed
// pictures downstream. Non-media samples pass through untouched.
func (s *Stage) Receive(in govdec.Sample) error {
	if in == nil {
		return &utils.OutOfRangeError{}
	}
	if !in.IsMedia() {
		if s.downstream == nil {
			return &utils.NotConnectedError{}
		}
		return s.downstream.Deliver(in)
	}
	if s.backend == nil || s.downstream == nil {
		return &utils.NotConnectedError{}
	}

	length := in.Len()
	data := s.payloadWithPadding(in, s.engine.InputPaddingSize())
	start, stop := in.Time()
	if stop <= start && stop != govdec.TimeUnknown {
		stop = start + s.avgFrameDuration
	}

	for offset := 0; offset < length; {
		out, err := s.obtainOutput()
		if err != nil {
			return err
		}

		// The lock covers one decode plus display step so control
		// operations can interleave between samples and during delivery.
		s.decodeAccess.Lock()
		if s.backend == nil {
			s.decodeAccess.Unlock()
			out.Release()
			return &utils.NotConnectedError{}
		}
		consumed, decodeErr := s.backend.Decode(data[offset:length], start, stop, out)
		if decodeErr != nil {
			s.decodeAccess.Unlock()
			out.Release()
			if errors.Is(decodeErr, govdec.ErrNeedMoreData) {
				return nil
			}
			return decodeErr
		}
		displayErr := s.backend.DisplayNextFrame(out)
		s.decodeAccess.Unlock()

		var notImpl *utils.UnimplementedError
		if errors.As(displayErr, &notImpl) {
			if err := s.downstream.Deliver(out); err != nil {
				return err
			}
		} else {
			out.Release()
			if displayErr != nil {
				return displayErr
			}
		}

		if consumed < 1 {
			logger.Warningf(s, "Decoder made no progress at offset %d of %d", offset, length)
			return nil
		}
		offset += consumed
	}
	return nil
}

// Close tears the whole stage down.
func (s *Stage) Close() {
	s.BreakConnectOutput()
	s.BreakConnectInput()
	if s.scratch != nil {
		utils.PutBuffer(s.scratch)
		s.scratch = nil
	}
}

func (s *Stage) obtainOutput() (govdec.Sample, error) {
	if s.outputAlloc == nil {
		alloc, err := s.InitAllocator()
		if err != nil {
			return nil, err
		}
		if err := s.DecideBufferSize(alloc, govdec.AllocatorProperties{}); err != nil {
			return nil, err
		}
	}
	return s.outputAlloc.Sample()
}

// payloadWithPadding returns the payload bytes backed by at least pad zero
// bytes of slack. The input buffer is reused when it already has room.
func (s *Stage) payloadWithPadding(in govdec.Sample, pad int) []byte {
	length := in.Len()
	raw := in.Data()
	if len(raw) >= length+pad {
		clear(raw[length : length+pad])
		return raw
	}

	if s.scratch == nil {
		s.scratch = utils.GetBuffer(length + pad)
	} else {
		s.scratch.Grow(length + pad)
	}
	copy(s.scratch.Buffer, raw[:length])
	clear(s.scratch.Buffer[length : length+pad])
	return s.scratch.Buffer
}

func (s *Stage) surfaceCapacity() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.Capacity()
}

func (s *Stage) poolSurface(index int) *surface.Surface {
	if s.pool == nil {
		return nil
	}
	return s.pool.Surface(index)
}

func (s *Stage) String() string {
	return fmt.Sprintf("H264_STAGE %dx%d", s.inputFormat.Width, s.inputFormat.Height)
}
