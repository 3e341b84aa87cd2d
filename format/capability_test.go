package format_test

import (
	"image"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/govdec/format"
)

func avc1Input() format.MediaFormat {
	return format.MediaFormat{
		Type:          format.TypeVideo,
		Subtype:       format.SubtypeAVC1,
		Layout:        format.VideoInfo2,
		Width:         1280,
		Height:        720,
		AspectX:       16,
		AspectY:       9,
		FrameDuration: 40 * time.Millisecond,
		BitRate:       4_000_000,
	}
}

func TestMakeFourCC(t *testing.T) {
	t.Parallel()

	nv12 := format.MakeFourCC('N', 'V', '1', '2')
	require.Equal(t, "NV12", nv12.String())
	require.Equal(t, format.FourCC(0x3231564e), nv12)
}

func TestSubtypeFromFourCC(t *testing.T) {
	t.Parallel()

	require.Equal(t, format.SubtypeNV12, format.SubtypeFromFourCC(format.MakeFourCC('N', 'V', '1', '2')))
	require.Equal(t, format.SubtypeYV12, format.SubtypeFromFourCC(format.MakeFourCC('Y', 'V', '1', '2')))
	require.Equal(t, format.SubtypeAVC1, format.SubtypeFromFourCC(format.MakeFourCC('A', 'V', 'C', '1')))
	require.Equal(t, format.SubtypeH264, format.SubtypeFromFourCC(format.MakeFourCC('H', '2', '6', '4')))
}

func TestSubtypeSupported(t *testing.T) {
	t.Parallel()

	require.True(t, format.SubtypeSupported(format.ModeH264E))
	require.True(t, format.SubtypeSupported(format.ModeH264F))
	require.True(t, format.SubtypeSupported(format.SubtypeNV12))
	require.True(t, format.SubtypeSupported(format.SubtypeYV12))
	require.False(t, format.SubtypeSupported(format.SubtypeAVC1))
	require.False(t, format.SubtypeSupported(uuid.Nil))
}

func TestBuildOutputFormats(t *testing.T) {
	t.Parallel()

	input := avc1Input()
	candidates := format.BuildOutputFormats(input)

	// Two layout variants per capability table entry.
	require.Len(t, candidates, 2*len(format.Supported))

	for i, c := range candidates {
		entry := format.Supported[i/2]
		require.Equal(t, format.TypeVideo, c.Type)
		require.Equal(t, entry.Subtype, c.Subtype)
		require.Equal(t, entry.Planes, c.Planes)
		require.Equal(t, entry.Compression, c.Compression)
		require.Equal(t, input.Width, c.Width)
		require.Equal(t, input.Height, c.Height)
		require.Equal(t, input.FrameDuration, c.FrameDuration)
		require.Equal(t, 1280*720*12/8, c.ImageSize)
		require.Equal(t, image.Rect(0, 0, 1280, 720), c.Source)

		if i%2 == 0 {
			require.Equal(t, format.VideoInfo, c.Layout)
			require.False(t, c.Interlaced)
		} else {
			require.Equal(t, format.VideoInfo2, c.Layout)
			require.True(t, c.Interlaced)
		}

		// Every synthesized candidate must survive the transform check.
		require.NoError(t, format.CheckTransform(input, c))
	}
}

func TestBuildOutputFormatsKeepsSourceRect(t *testing.T) {
	t.Parallel()

	input := avc1Input()
	input.Source = image.Rect(8, 8, 1272, 712)
	input.Target = image.Rect(0, 0, 640, 360)

	candidates := format.BuildOutputFormats(input)
	require.Equal(t, input.Source, candidates[0].Source)
	require.Equal(t, input.Target, candidates[0].Target)
}

func TestCheckTransformFamilies(t *testing.T) {
	t.Parallel()

	out := func(subtype uuid.UUID) format.MediaFormat {
		return format.MediaFormat{Type: format.TypeVideo, Subtype: subtype}
	}

	for _, test := range []struct {
		name string
		in   uuid.UUID
		out  uuid.UUID
		ok   bool
	}{
		{"compressed input accepts opaque output", format.SubtypeAVC1, format.SubtypeNV12, true},
		{"planar input accepts planar output", format.SubtypeYV12, format.SubtypeI420, true},
		{"planar input accepts packed yuv output", format.SubtypeI420, format.SubtypeYUY2, true},
		{"planar input rejects opaque output", format.SubtypeYV12, format.SubtypeNV12, false},
		{"packed input accepts only itself", format.SubtypeYUY2, format.SubtypeYUY2, true},
		{"packed input rejects planar output", format.SubtypeYUY2, format.SubtypeYV12, false},
	} {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := format.CheckTransform(out(test.in), out(test.out))
			if test.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCheckTransformRejectsNonVideo(t *testing.T) {
	t.Parallel()

	err := format.CheckTransform(avc1Input(), format.MediaFormat{Subtype: format.SubtypeNV12})
	require.Error(t, err)
}