// Package hwcompat decides whether the video adapter can hardware-decode a
// given H.264 stream. The policy is a pure function of the stream parameters
// and an injected adapter description, so it is unit-testable without
// hardware.
package hwcompat

import (
	"strings"
)

// Vendor is a PCI vendor identifier.
type Vendor uint16

const (
	VendorNVIDIA Vendor = 0x10de
	VendorATI    Vendor = 0x1002
	VendorS3     Vendor = 0x5333
)

// Reasons is a bitmask of hardware incompatibility causes.
type Reasons uint8

const (
	UnsupportedLevel Reasons = 1 << iota // The adapter cannot decode this codec level.
	TooManyRefFrames                     // The stream declares more reference frames than the adapter handles.
)

func (r Reasons) Has(mask Reasons) bool {
	return r&mask != 0
}

func (r Reasons) String() string {
	if r == 0 {
		return "compatible"
	}
	parts := make([]string, 0, 2)
	if r.Has(UnsupportedLevel) {
		parts = append(parts, "unsupported level")
	}
	if r.Has(TooManyRefFrames) {
		parts = append(parts, "too many reference frames")
	}
	return strings.Join(parts, ", ")
}

// DriverVersion packs the four-component display driver version a.b.c.d the
// way adapters report it: a.b in the high half, c.d in the low half.
type DriverVersion struct {
	High uint32
	Low  uint32
}

// NewDriverVersion builds a DriverVersion from its four components.
func NewDriverVersion(a, b, c, d uint16) DriverVersion {
	return DriverVersion{
		High: uint32(a)<<16 | uint32(b),
		Low:  uint32(c)<<16 | uint32(d),
	}
}

// AtLeast reports whether the version reaches a.b.c.d under 4-component
// lexicographic comparison.
func (v DriverVersion) AtLeast(a, b, c, d uint16) bool {
	va, vb := uint16(v.High>>16), uint16(v.High)
	vc, vd := uint16(v.Low>>16), uint16(v.Low)

	if va != a {
		return va > a
	}
	if vb != b {
		return vb > b
	}
	if vc != c {
		return vc > c
	}
	return vd >= d
}

// Provider describes the video adapter and platform the stage runs against.
// Injected so Classify stays free of ambient global state.
type Provider interface {
	Vendor() Vendor
	DeviceID() uint32
	DriverVersion() DriverVersion
	ModernPlatform() bool
}

// DecodeSurfaceCount is the decode-target pool capacity for the platform
// generation.
func DecodeSurfaceCount(modern bool) int {
	if modern {
		return 22
	}
	return 16
}

// Decoded-picture-buffer byte budget at level 4.1; bounds the default
// reference frame count for a given resolution.
const dpbBudget = 8388608

const (
	defaultMaxRefFrames = 11
	level51             = 51
	hdWidth             = 1280
)

// Classify maps stream parameters and the adapter description to a bitmask
// of incompatibility reasons. A negative level means no sequence header has
// been parsed yet; compatibility is then assumed and deferred to runtime.
func Classify(width, height, level, refFrames int, env Provider) Reasons {
	if level < 0 {
		return 0
	}
	if width <= 0 || height <= 0 {
		return 0
	}

	noLevel51Support := true
	maxRefFrames := min(defaultMaxRefFrames, dpbBudget/(width*height))

	switch env.Vendor() {
	case VendorNVIDIA:
		// nVidia supports level 5.1 since driver 6.14.11.7800 on legacy
		// platforms and 7.15.11.7800 on modern ones.
		if env.ModernPlatform() {
			if env.DriverVersion().AtLeast(7, 15, 11, 7800) {
				noLevel51Support = false
				if width >= hdWidth {
					maxRefFrames = 16
				} else {
					maxRefFrames = 11
				}
			}
		} else {
			if env.DriverVersion().AtLeast(6, 14, 11, 7800) {
				noLevel51Support = false
				maxRefFrames = 14
			}
		}
	case VendorS3:
		noLevel51Support = false
	case VendorATI:
		// HD4xxx and HD5xxx families support level 5.1 since Catalyst 10.4.
		family := env.DeviceID() >> 8
		if family == 0x68 || family == 0x94 {
			if env.DriverVersion().AtLeast(8, 14, 1, 6105) {
				noLevel51Support = false
				maxRefFrames = 16
			}
		}
	}

	var reasons Reasons
	if level >= level51 && noLevel51Support {
		reasons |= UnsupportedLevel
	}
	if refFrames > maxRefFrames {
		reasons |= TooManyRefFrames
	}
	return reasons
}
