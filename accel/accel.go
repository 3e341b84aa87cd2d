// Package accel declares the stage's view of the hardware acceleration
// services exposed by the downstream renderer: the generation-1 accelerator
// contract and the generation-2 device-manager family. Implementations live
// in the host pipeline; the stage only negotiates against these interfaces.
package accel

import (
	"github.com/google/uuid"
	"github.com/ugparu/govdec/format"
)

// PixelFormat describes one uncompressed surface layout offered by an
// accelerator.
type PixelFormat struct {
	FourCC   format.FourCC
	BitCount int
}

// NV12 is the 4:2:0 semi-planar layout every hardware path prefers.
var NV12 = PixelFormat{FourCC: format.MakeFourCC('N', 'V', '1', '2'), BitCount: 12}

// VideoDesc describes the stream a generation-2 decoder is created for.
type VideoDesc struct {
	Width           int
	Height          int
	Format          PixelFormat
	ProtectionLevel int
}

// PictureDecodeConfig is one decoder configuration a generation-2 service
// offers for a (device, stream) pair. BitstreamRaw 2 selects the raw
// slice-data mode the stage prefers.
type PictureDecodeConfig struct {
	BitstreamRaw uint8
	Encryption   uuid.UUID
}

// SurfacesInfo answers the generation-1 uncompressed surface requirement
// query.
type SurfacesInfo struct {
	MinSurfaces int
	MaxSurfaces int
	PixelFormat PixelFormat
}

// UncompDataInfo parameterizes the generation-1 compressed-buffer probe.
type UncompDataInfo struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
}

// CompBufferInfo describes one compressed-buffer type of a generation-1
// accelerator.
type CompBufferInfo struct {
	Count int
	Size  int
}

// RestrictedModeH264E is the restricted-profile constant carried in the
// generation-1 connect-mode blob.
const RestrictedModeH264E = 0x68

// ConnectMode is the vendor blob returned from the generation-1 activation
// handshake, keyed by decoder profile and restricted mode.
type ConnectMode struct {
	Mode           uuid.UUID
	RestrictedMode uint16
}

// VideoAccelerator is the generation-1 acceleration service a downstream
// renderer may expose. Surface indices refer to the renderer-allocated
// uncompressed surface set.
type VideoAccelerator interface {
	UncompFormatsSupported(deviceID uuid.UUID) ([]PixelFormat, error)
	CompBufferInfo(deviceID uuid.UUID, info UncompDataInfo) ([]CompBufferInfo, error)
	BeginFrame(surfaceIndex int) error
	Execute(buffers [][]byte) error
	EndFrame() error
	DisplayFrame(surfaceIndex int) error
}

// SurfaceHandle is an opaque hardware picture buffer.
type SurfaceHandle interface {
	Release()
}

// SurfaceType classifies how a renderer sources its picture buffers.
type SurfaceType uint8

const (
	SurfaceTypeSystemMemory        SurfaceType = iota // Renderer-allocated generic memory.
	SurfaceTypeDecoderRenderTarget                    // Externally allocated decode surfaces.
)

// ServiceProvider is implemented by downstreams able to hand out
// generation-2 acceleration services.
type ServiceProvider interface {
	DeviceManager() (DeviceManager, error)
	MemoryConfiguration() (MemoryConfiguration, error)
}

// DeviceManager opens device handles and resolves per-device services.
type DeviceManager interface {
	OpenDeviceHandle() (*SharedDeviceHandle, error)
	DecoderService(h *SharedDeviceHandle) (DecoderService, error)
	AccelerationService(h *SharedDeviceHandle) (AccelerationService, error)
}

// DecoderService enumerates decoder devices and creates hardware decoder
// instances.
type DecoderService interface {
	DecoderDeviceIDs() ([]uuid.UUID, error)
	RenderTargets(deviceID uuid.UUID) ([]PixelFormat, error)
	DecoderConfigs(deviceID uuid.UUID, desc VideoDesc) ([]PictureDecodeConfig, error)
	CreateDecoder(deviceID uuid.UUID, desc VideoDesc, cfg PictureDecodeConfig, targets []SurfaceHandle) (VideoDecoder, error)
}

// AccelerationService creates decode render-target surfaces.
type AccelerationService interface {
	CreateSurface(width, height int, f PixelFormat) (SurfaceHandle, error)
}

// MemoryConfiguration switches the renderer between its own buffers and
// externally allocated decode surfaces.
type MemoryConfiguration interface {
	AvailableSurfaceTypes() []SurfaceType
	SetSurfaceType(t SurfaceType) error
}

// VideoDecoder is one created generation-2 hardware decoder instance.
type VideoDecoder interface {
	BeginFrame(target SurfaceHandle) error
	Execute(buffers [][]byte) error
	EndFrame() error
	Flush() error
	Close()
}
