package format

import (
	"image"

	"github.com/google/uuid"
	"github.com/ugparu/govdec/utils"
)

// Entry ties an output surface subtype to its plane count and compression
// code.
type Entry struct {
	Subtype     uuid.UUID
	Planes      int
	Compression FourCC
}

// Supported lists every output surface format the stage can negotiate, in
// preference order: hardware opaque formats first, then software planar
// layouts. Some drivers advertise the opaque code with inconsistent casing,
// hence the four NV12 spellings.
var Supported = []Entry{
	{ModeH264E, 1, MakeFourCC('d', 'x', 'v', 'a')},
	{ModeH264F, 1, MakeFourCC('d', 'x', 'v', 'a')},
	{SubtypeNV12, 1, MakeFourCC('d', 'x', 'v', 'a')},
	{SubtypeNV12, 1, MakeFourCC('D', 'X', 'V', 'A')},
	{SubtypeNV12, 1, MakeFourCC('D', 'x', 'V', 'A')},
	{SubtypeNV12, 1, MakeFourCC('D', 'X', 'v', 'A')},

	{SubtypeYV12, 3, MakeFourCC('Y', 'V', '1', '2')},
	{SubtypeYUY2, 3, MakeFourCC('Y', 'U', 'Y', '2')},
}

// SubtypeSupported reports whether id appears in the capability table. Also
// used to filter accelerator decoder device IDs, which share the subtype
// namespace.
func SubtypeSupported(id uuid.UUID) bool {
	for _, entry := range Supported {
		if entry.Subtype == id {
			return true
		}
	}
	return false
}

// Output pictures are 4:2:0, 12 bits per pixel.
const outputBitCount = 12

// BuildOutputFormats synthesizes the output candidate list for a connected
// input: per capability table entry one legacy and one extended layout
// variant carrying the input's dimensions, aspect ratio and frame duration.
func BuildOutputFormats(input MediaFormat) []MediaFormat {
	source := input.Source
	target := input.Target
	if source.Dx() == 0 || source.Dy() == 0 {
		frame := image.Rect(0, 0, input.Width, input.Height)
		source = frame
		target = frame
	}

	base := MediaFormat{
		Type:          TypeVideo,
		Width:         input.Width,
		Height:        input.Height,
		AspectX:       input.AspectX,
		AspectY:       input.AspectY,
		BitCount:      outputBitCount,
		ImageSize:     input.Width * input.Height * outputBitCount >> 3,
		FrameDuration: input.FrameDuration,
		BitRate:       input.BitRate,
		BitErrorRate:  input.BitErrorRate,
		Source:        source,
		Target:        target,
	}

	candidates := make([]MediaFormat, 0, 2*len(Supported))
	for _, entry := range Supported {
		legacy := base
		legacy.Subtype = entry.Subtype
		legacy.Layout = VideoInfo
		legacy.Planes = entry.Planes
		legacy.Compression = entry.Compression
		candidates = append(candidates, legacy)

		extended := legacy
		extended.Layout = VideoInfo2
		extended.Interlaced = true
		candidates = append(candidates, extended)
	}
	return candidates
}

// CheckTransform validates a candidate output type against the connected
// input family. Planar YUV inputs may only connect to planar or packed YUV
// outputs, never to a different family.
func CheckTransform(in, out MediaFormat) error {
	if out.Type != TypeVideo {
		return &utils.TypeNotAcceptedError{}
	}

	switch in.Subtype {
	case SubtypeYV12, SubtypeI420, SubtypeIYUV:
		switch out.Subtype {
		case SubtypeYV12, SubtypeI420, SubtypeIYUV, SubtypeYUY2:
		default:
			return &utils.TypeNotAcceptedError{}
		}
	case SubtypeYUY2:
		if out.Subtype != SubtypeYUY2 {
			return &utils.TypeNotAcceptedError{}
		}
	}

	return nil
}
