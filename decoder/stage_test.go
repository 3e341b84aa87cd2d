package decoder_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/decoder"
	"github.com/ugparu/govdec/format"
	"github.com/ugparu/govdec/hwcompat"
)

type stubEnv struct {
	vendor hwcompat.Vendor
	device uint32
	driver hwcompat.DriverVersion
	modern bool
}

func (e stubEnv) Vendor() hwcompat.Vendor               { return e.vendor }
func (e stubEnv) DeviceID() uint32                      { return e.device }
func (e stubEnv) DriverVersion() hwcompat.DriverVersion { return e.driver }
func (e stubEnv) ModernPlatform() bool                  { return e.modern }

type decodeStep struct {
	consumed int
	frame    bool
	err      error
}

// stubContext scripts the bitstream context: each Decode call pops one step.
type stubContext struct {
	info    govdec.StreamInfo
	steps   []decodeStep
	start   time.Duration
	stop    time.Duration
	flushes int
	closes  int
	seen    [][]byte
	padded  []bool
}

func (c *stubContext) Info() govdec.StreamInfo {
	return c.info
}

func (c *stubContext) UpdateTime(start, stop time.Duration) {
	c.start = start
	c.stop = stop
}

func (c *stubContext) Decode(data []byte, out govdec.Sample) (int, error) {
	c.seen = append(c.seen, append([]byte(nil), data...))
	c.padded = append(c.padded, hasZeroSlack(data, 64))

	step := decodeStep{consumed: len(data), frame: true}
	if len(c.steps) > 0 {
		step = c.steps[0]
		c.steps = c.steps[1:]
	}
	if step.err != nil {
		return step.consumed, step.err
	}
	if !step.frame {
		return step.consumed, govdec.ErrNeedMoreData
	}
	out.SetTime(c.start, c.stop)
	return step.consumed, nil
}

func (c *stubContext) Flush() {
	c.flushes++
}

func (c *stubContext) Close() {
	c.closes++
}

func hasZeroSlack(data []byte, pad int) bool {
	if cap(data) < len(data)+pad {
		return false
	}
	for _, b := range data[len(data) : len(data)+pad] {
		if b != 0 {
			return false
		}
	}
	return true
}

type stubEngine struct {
	ctx    *stubContext
	ctxErr error
}

func (e *stubEngine) SupportsSubtype(f format.MediaFormat) bool {
	return f.Subtype == format.SubtypeAVC1
}

func (e *stubEngine) InputPaddingSize() int {
	return 64
}

func (e *stubEngine) NewContext(format.MediaFormat) (govdec.BitstreamContext, error) {
	if e.ctxErr != nil {
		return nil, e.ctxErr
	}
	return e.ctx, nil
}

type delivery struct {
	start time.Duration
	stop  time.Duration
}

type stubDownstream struct {
	delivered []govdec.Sample
	times     []delivery
	err       error
}

func (d *stubDownstream) Deliver(s govdec.Sample) error {
	if d.err != nil {
		return d.err
	}
	start, stop := s.Time()
	d.delivered = append(d.delivered, s)
	d.times = append(d.times, delivery{start: start, stop: stop})
	return nil
}

func inputFormat() format.MediaFormat {
	return format.MediaFormat{
		Type:          format.TypeVideo,
		Subtype:       format.SubtypeAVC1,
		Width:         1280,
		Height:        720,
		FrameDuration: 40 * time.Millisecond,
	}
}

// connectStage wires input and output around the given downstream; with a
// plain downstream the stage lands on the software backend.
func connectStage(t *testing.T, ctx *stubContext, down govdec.Downstream) *decoder.Stage {
	t.Helper()

	s := decoder.NewStage(&stubEngine{ctx: ctx}, stubEnv{modern: true})
	require.NoError(t, s.SetInputFormat(inputFormat()))
	require.NoError(t, s.CompleteConnectInput())

	out, err := s.OutputFormat(0)
	require.NoError(t, err)
	require.NoError(t, s.SetOutputFormat(out))
	require.NoError(t, s.ConnectOutput(down))
	require.NoError(t, s.CompleteConnectOutput())
	return s
}

func streamInfo720p() govdec.StreamInfo {
	return govdec.StreamInfo{Width: 1280, Height: 720, Level: 41, RefFrames: 4}
}

func TestStageRejectsForeignInput(t *testing.T) {
	t.Parallel()

	s := decoder.NewStage(&stubEngine{ctx: &stubContext{}}, stubEnv{})

	bad := inputFormat()
	bad.Subtype = format.SubtypeNV12
	require.Error(t, s.CheckInputType(bad))

	bad = inputFormat()
	bad.Type = format.TypeVideo
	bad.Width = 0
	require.Error(t, s.CheckInputType(bad))

	require.NoError(t, s.CheckInputType(inputFormat()))
}

func TestStageOutputEnumeration(t *testing.T) {
	t.Parallel()

	s := decoder.NewStage(&stubEngine{ctx: &stubContext{}}, stubEnv{})

	_, err := s.OutputFormat(0)
	require.Error(t, err)

	require.NoError(t, s.SetInputFormat(inputFormat()))
	count := 2 * len(format.Supported)
	for i := 0; i < count; i++ {
		f, err := s.OutputFormat(i)
		require.NoError(t, err)
		require.Equal(t, format.TypeVideo, f.Type)
	}
	_, err = s.OutputFormat(count)
	require.Error(t, err)
	_, err = s.OutputFormat(-1)
	require.Error(t, err)
}

func TestReceiveDeliversDecodedFrame(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)
	require.False(t, s.NeedsCustomAllocator())

	in := decoder.NewMediaSample([]byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}, 64)
	in.SetTime(time.Second, time.Second+40*time.Millisecond)

	require.NoError(t, s.Receive(in))
	require.Len(t, down.delivered, 1)
	require.Equal(t, time.Second, down.times[0].start)
	require.Equal(t, time.Second+40*time.Millisecond, down.times[0].stop)
}

func TestReceivePassesControlSamplesThrough(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewControlSample([]byte{0xde, 0xad})
	require.NoError(t, s.Receive(in))

	require.Len(t, down.delivered, 1)
	require.Same(t, in, down.delivered[0])
	require.Empty(t, ctx.seen)
}

func TestReceiveRepairsDegenerateStopTime(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewMediaSample([]byte{0x01, 0x02}, 64)
	in.SetTime(time.Second, time.Second)

	require.NoError(t, s.Receive(in))
	require.Len(t, down.times, 1)
	require.Equal(t, time.Second, down.times[0].start)
	require.Equal(t, time.Second+40*time.Millisecond, down.times[0].stop)
}

func TestReceiveKeepsUnknownStopTime(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewMediaSample([]byte{0x01, 0x02}, 64)
	in.SetTime(time.Second, govdec.TimeUnknown)

	require.NoError(t, s.Receive(in))
	require.Len(t, down.times, 1)
	require.Equal(t, govdec.TimeUnknown, down.times[0].stop)
}

func TestReceiveNeedMoreDataIsSuccessWithoutDelivery(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{
		info:  streamInfo720p(),
		steps: []decodeStep{{consumed: 2, frame: false}},
	}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewMediaSample([]byte{0x01, 0x02}, 64)
	require.NoError(t, s.Receive(in))
	require.Empty(t, down.delivered)
}

func TestReceiveDecodesWholeSample(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{
		info: streamInfo720p(),
		steps: []decodeStep{
			{consumed: 4, frame: true},
			{consumed: 4, frame: true},
		},
	}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewMediaSample([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 64)
	require.NoError(t, s.Receive(in))

	require.Len(t, down.delivered, 2)
	require.Len(t, ctx.seen, 2)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, ctx.seen[0])
	require.Equal(t, []byte{5, 6, 7, 8}, ctx.seen[1])
}

func TestReceivePadsTightPayloads(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	// A sample with no slack of its own forces the stage to repackage.
	in := &tightSample{data: []byte{0x41, 0x9a, 0x03}}
	require.NoError(t, s.Receive(in))

	require.Len(t, ctx.padded, 1)
	require.True(t, ctx.padded[0])
	require.Equal(t, []byte{0x41, 0x9a, 0x03}, ctx.seen[0])
}

func TestReceivePropagatesDecodeErrors(t *testing.T) {
	t.Parallel()

	decodeErr := errors.New("corrupt access unit")
	ctx := &stubContext{
		info:  streamInfo720p(),
		steps: []decodeStep{{err: decodeErr}},
	}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewMediaSample([]byte{0x01}, 64)
	require.ErrorIs(t, s.Receive(in), decodeErr)
	require.Empty(t, down.delivered)
}

func TestReceiveStopsWhenDecoderStalls(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{
		info:  streamInfo720p(),
		steps: []decodeStep{{consumed: 0, frame: true}},
	}
	down := &stubDownstream{}
	s := connectStage(t, ctx, down)

	in := decoder.NewMediaSample([]byte{0x01, 0x02}, 64)
	require.NoError(t, s.Receive(in))

	// One delivery, then the stage gives up instead of spinning.
	require.Len(t, down.delivered, 1)
	require.Len(t, ctx.seen, 1)
}

func TestNewSegmentRunsWhileDeliveryBlocks(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	down := &blockingDownstream{entered: make(chan struct{}), release: make(chan struct{})}
	s := connectStage(t, ctx, down)

	received := make(chan error, 1)
	go func() {
		in := decoder.NewMediaSample([]byte{0x01, 0x02}, 64)
		received <- s.Receive(in)
	}()
	<-down.entered

	// The decode lock must be free while the downstream holds the sample.
	segmented := make(chan error, 1)
	go func() {
		segmented <- s.NewSegment(0, time.Minute, 1.0)
	}()
	select {
	case err := <-segmented:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("segment change blocked behind downstream delivery")
	}

	close(down.release)
	require.NoError(t, <-received)
}

func TestNewSegmentFlushes(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	s := connectStage(t, ctx, &stubDownstream{})

	require.NoError(t, s.NewSegment(0, time.Minute, 1.0))
	require.Equal(t, 1, ctx.flushes)
}

func TestDecideBufferSizeGrowsToImageSize(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	s := connectStage(t, ctx, &stubDownstream{})

	alloc, err := s.InitAllocator()
	require.NoError(t, err)
	require.NoError(t, s.DecideBufferSize(alloc, govdec.AllocatorProperties{Count: 3, Size: 16}))

	sample, err := alloc.Sample()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(sample.Data()), 1280*720*12/8)
	sample.Release()
}

func TestCloseShutsDownContext(t *testing.T) {
	t.Parallel()

	ctx := &stubContext{info: streamInfo720p()}
	s := connectStage(t, ctx, &stubDownstream{})

	s.Close()
	require.Equal(t, 1, ctx.closes)

	in := decoder.NewMediaSample([]byte{0x01}, 64)
	require.Error(t, s.Receive(in))
}

// blockingDownstream parks inside Deliver until released.
type blockingDownstream struct {
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDownstream) Deliver(s govdec.Sample) error {
	close(d.entered)
	<-d.release
	s.Release()
	return nil
}

// tightSample exposes exactly its payload, with no slack behind it.
type tightSample struct {
	data  []byte
	start time.Duration
	stop  time.Duration
}

func (s *tightSample) Data() []byte                         { return s.data }
func (s *tightSample) Len() int                             { return len(s.data) }
func (s *tightSample) SetLen(int)                           {}
func (s *tightSample) Time() (time.Duration, time.Duration) { return s.start, s.stop }
func (s *tightSample) SetTime(start, stop time.Duration)    { s.start, s.stop = start, stop }
func (s *tightSample) IsMedia() bool                        { return true }
func (s *tightSample) Release()                             {}