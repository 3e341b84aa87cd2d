package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/backend/va1"
	"github.com/ugparu/govdec/format"
	"github.com/ugparu/govdec/hwcompat"
)

type plainEnv struct{}

func (plainEnv) Vendor() hwcompat.Vendor               { return hwcompat.Vendor(0) }
func (plainEnv) DeviceID() uint32                      { return 0 }
func (plainEnv) DriverVersion() hwcompat.DriverVersion { return hwcompat.DriverVersion{} }
func (plainEnv) ModernPlatform() bool                  { return true }

type plainContext struct {
	info govdec.StreamInfo
}

func (c *plainContext) Info() govdec.StreamInfo                     { return c.info }
func (c *plainContext) UpdateTime(start, stop time.Duration)        {}
func (c *plainContext) Decode(data []byte, out govdec.Sample) (int, error) {
	out.SetTime(0, 0)
	return len(data), nil
}
func (c *plainContext) Flush() {}
func (c *plainContext) Close() {}

type plainEngine struct {
	ctx *plainContext
}

func (e *plainEngine) SupportsSubtype(f format.MediaFormat) bool { return true }
func (e *plainEngine) InputPaddingSize() int                     { return 64 }
func (e *plainEngine) NewContext(format.MediaFormat) (govdec.BitstreamContext, error) {
	return e.ctx, nil
}

type plainDownstream struct {
	delivered int
}

func (d *plainDownstream) Deliver(s govdec.Sample) error {
	d.delivered++
	s.Release()
	return nil
}

func TestCompleteConnectOutputDiscardsUnusableBackend(t *testing.T) {
	t.Parallel()

	ctx := &plainContext{info: govdec.StreamInfo{Width: 1280, Height: 720, Level: 41, RefFrames: 4}}
	down := &plainDownstream{}

	s := NewStage(&plainEngine{ctx: ctx}, plainEnv{})
	in := format.MediaFormat{
		Type:    format.TypeVideo,
		Subtype: format.SubtypeAVC1,
		Width:   1280,
		Height:  720,
	}
	require.NoError(t, s.SetInputFormat(in))
	require.NoError(t, s.CompleteConnectInput())
	out, err := s.OutputFormat(0)
	require.NoError(t, err)
	require.NoError(t, s.SetOutputFormat(out))
	require.NoError(t, s.ConnectOutput(down))

	// A recorded binding with no surfaces cannot initialize; the stage
	// drops it and lands on the software path.
	s.pendingVA1 = va1.New(format.ModeH264E, ctx, nil, 0)

	require.NoError(t, s.CompleteConnectOutput())
	require.Nil(t, s.pendingVA1)
	require.False(t, s.NeedsCustomAllocator())

	sample := NewMediaSample([]byte{0x01, 0x02}, 64)
	require.NoError(t, s.Receive(sample))
	require.Equal(t, 1, down.delivered)
}
