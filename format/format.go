// Package format defines the media format descriptors the decode stage
// exchanges with its upstream and downstream peers, together with the fixed
// capability table of negotiable output surface formats.
package format

import (
	"encoding/binary"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
)

// FourCC is a four-character compression code packed little-endian, the way
// bitmap headers carry it.
type FourCC uint32

// MakeFourCC packs four characters into a FourCC.
func MakeFourCC(a, b, c, d byte) FourCC {
	return FourCC(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

func (f FourCC) String() string {
	return fmt.Sprintf("%c%c%c%c", byte(f), byte(f>>8), byte(f>>16), byte(f>>24))
}

// Layout selects which video-info variant a descriptor carries. The two
// variants differ only in interlace and rectangle metadata richness.
type Layout uint8

const (
	VideoInfo  Layout = iota // Legacy layout: rectangles only.
	VideoInfo2               // Extended layout: picture aspect ratio and interlacing.
)

func (l Layout) String() string {
	if l == VideoInfo2 {
		return "VideoInfo2"
	}
	return "VideoInfo"
}

// Major type and surface subtype identifiers. The values are the canonical
// GUIDs of the formats they name, so descriptors interoperate with hosts
// that speak the native vocabulary.
var (
	TypeVideo = uuid.MustParse("73646976-0000-0010-8000-00aa00389b71")

	// Hardware opaque decoder profiles.
	ModeH264E = uuid.MustParse("1b81be68-a0c7-11d3-b984-00c04f2e73c5")
	ModeH264F = uuid.MustParse("1b81be69-a0c7-11d3-b984-00c04f2e73c5")

	// Uncompressed pixel layouts.
	SubtypeNV12 = uuid.MustParse("3231564e-0000-0010-8000-00aa00389b71")
	SubtypeYV12 = uuid.MustParse("32315659-0000-0010-8000-00aa00389b71")
	SubtypeYUY2 = uuid.MustParse("32595559-0000-0010-8000-00aa00389b71")
	SubtypeI420 = uuid.MustParse("30323449-0000-0010-8000-00aa00389b71")
	SubtypeIYUV = uuid.MustParse("56555949-0000-0010-8000-00aa00389b71")

	// Compressed input subtypes.
	SubtypeAVC1 = uuid.MustParse("31435641-0000-0010-8000-00aa00389b71")
	SubtypeH264 = uuid.MustParse("34363248-0000-0010-8000-00aa00389b71")
)

var subtypeBase = uuid.MustParse("00000000-0000-0010-8000-00aa00389b71")

// SubtypeFromFourCC maps a compression code to its media subtype: the code
// occupies the first dword of the base GUID.
func SubtypeFromFourCC(f FourCC) uuid.UUID {
	id := subtypeBase
	binary.BigEndian.PutUint32(id[:4], uint32(f))
	return id
}

// MediaFormat describes one negotiable media type: a surface or pixel
// layout plus the dimensions, timing and plane metadata of the stream.
// Descriptors are immutable once synthesized.
type MediaFormat struct {
	Type    uuid.UUID
	Subtype uuid.UUID
	Layout  Layout

	Width   int
	Height  int
	AspectX int
	AspectY int

	Planes      int
	Compression FourCC
	BitCount    int
	ImageSize   int

	FrameDuration time.Duration
	BitRate       uint
	BitErrorRate  uint

	Source image.Rectangle
	Target image.Rectangle

	Interlaced bool

	// Extra carries codec private data, for H.264 an AVC decoder
	// configuration record.
	Extra []byte
}

func (f MediaFormat) String() string {
	return fmt.Sprintf("FORMAT %s %dx%d %s", f.Subtype, f.Width, f.Height, f.Layout)
}
