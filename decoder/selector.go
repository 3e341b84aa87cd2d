package decoder

import (
	"github.com/google/uuid"
	"github.com/ugparu/govdec/accel"
	"github.com/ugparu/govdec/backend/va1"
	"github.com/ugparu/govdec/backend/va2"
	"github.com/ugparu/govdec/format"
	"github.com/ugparu/govdec/hwcompat"
	"github.com/ugparu/govdec/surface"
	"github.com/ugparu/govdec/utils"
	"github.com/ugparu/govdec/utils/logger"
)

// Generation-1 accelerators are probed with a fixed conservative frame
// size before the real stream dimensions are known.
const (
	gen1ProbeWidth  = 720
	gen1ProbeHeight = 480
)

// UncompSurfacesInfo answers the generation-1 renderer's query for the
// uncompressed surface requirements of one decoder profile. The profile
// and its pixel format are recorded here as the chosen device.
func (s *Stage) UncompSurfacesInfo(profile uuid.UUID) (accel.SurfacesInfo, error) {
	if !format.SubtypeSupported(profile) {
		return accel.SurfacesInfo{}, &utils.TypeNotAcceptedError{}
	}
	va, ok := s.downstream.(accel.VideoAccelerator)
	if !ok {
		return accel.SurfacesInfo{}, &utils.NotConnectedError{}
	}

	offered, err := va.UncompFormatsSupported(profile)
	if err != nil {
		return accel.SurfacesInfo{}, err
	}
	pf := accel.PixelFormat{}
	found := false
	for _, f := range offered {
		if f.FourCC == accel.NV12.FourCC {
			pf = f
			found = true
			break
		}
	}
	if !found {
		return accel.SurfacesInfo{}, &utils.TypeNotAcceptedError{}
	}

	s.va1DeviceID = profile
	s.va1PixelFormat = pf

	count := hwcompat.DecodeSurfaceCount(s.env.ModernPlatform())
	return accel.SurfacesInfo{
		MinSurfaces: count,
		MaxSurfaces: count,
		PixelFormat: pf,
	}, nil
}

// SetUncompSurfacesInfo records how many surfaces the renderer actually
// allocated for the device chosen during the requirements query.
func (s *Stage) SetUncompSurfacesInfo(actual int) error {
	if actual < 1 {
		return &utils.OutOfRangeError{}
	}
	s.va1SurfaceCount = actual
	return nil
}

// CreateVideoAcceleratorData finishes the generation-1 handshake: it gates
// the stream on the compatibility policy, probes the accelerator's
// compressed buffers and hands back the connect-mode blob. The output
// connection must already carry the downstream accelerator.
func (s *Stage) CreateVideoAcceleratorData(profile uuid.UUID) (accel.ConnectMode, accel.UncompDataInfo, error) {
	if err := s.activateGen1(profile); err != nil {
		return accel.ConnectMode{}, accel.UncompDataInfo{}, err
	}
	mode := accel.ConnectMode{
		Mode:           profile,
		RestrictedMode: accel.RestrictedModeH264E,
	}
	info := accel.UncompDataInfo{
		Width:       gen1ProbeWidth,
		Height:      gen1ProbeHeight,
		PixelFormat: s.va1PixelFormat,
	}
	return mode, info, nil
}

func (s *Stage) activateGen1(profile uuid.UUID) error {
	if s.ctx == nil || s.va1SurfaceCount < 1 {
		return &utils.NotConnectedError{}
	}
	va, ok := s.downstream.(accel.VideoAccelerator)
	if !ok {
		return &utils.NotConnectedError{}
	}

	info := s.ctx.Info()
	if r := hwcompat.Classify(info.Width, info.Height, info.Level, info.RefFrames, s.env); r.Has(hwcompat.UnsupportedLevel) {
		logger.Warningf(s, "Generation-1 device %v rejects stream: %v", profile, r)
		return &utils.TypeNotAcceptedError{}
	}

	buffers, err := va.CompBufferInfo(profile, accel.UncompDataInfo{
		Width:       gen1ProbeWidth,
		Height:      gen1ProbeHeight,
		PixelFormat: s.va1PixelFormat,
	})
	if err != nil {
		return err
	}
	logger.Debugf(s, "Generation-1 device %v offers %d compressed buffer types", profile, len(buffers))

	s.pendingVA1 = va1.New(profile, s.ctx, va, s.va1SurfaceCount)
	return nil
}

// activateGen2 walks the generation-2 device enumeration. A failure at any
// step of one candidate moves on to the next device ID.
func (s *Stage) activateGen2() error {
	provider, ok := s.downstream.(accel.ServiceProvider)
	if !ok {
		return &utils.UnimplementedError{}
	}
	manager, err := provider.DeviceManager()
	if err != nil {
		return err
	}
	device, err := manager.OpenDeviceHandle()
	if err != nil {
		return err
	}
	service, err := manager.DecoderService(device)
	if err != nil {
		device.Release()
		return err
	}
	ids, err := service.DecoderDeviceIDs()
	if err != nil {
		device.Release()
		return err
	}

	info := s.ctx.Info()
	if r := hwcompat.Classify(info.Width, info.Height, info.Level, info.RefFrames, s.env); r != 0 {
		logger.Warningf(s, "Hardware incompatible with stream: %v", r)
		device.Release()
		return &utils.TypeNotAcceptedError{}
	}

	for _, id := range ids {
		if !format.SubtypeSupported(id) {
			continue
		}
		backend, err := s.createGen2Decoder(provider, manager, service, device, id)
		if err != nil {
			logger.Warningf(s, "Generation-2 device %v rejected: %v", id, err)
			continue
		}
		s.backend = backend
		logger.Infof(s, "Decoding on generation-2 device %v", id)
		return nil
	}

	device.Release()
	return &utils.TypeNotAcceptedError{}
}

// createGen2Decoder builds the full generation-2 stack for one device ID:
// render target, decoder configuration, renderer memory switch, surface
// pool and the hardware decoder itself.
func (s *Stage) createGen2Decoder(provider accel.ServiceProvider, manager accel.DeviceManager,
	service accel.DecoderService, device *accel.SharedDeviceHandle, id uuid.UUID) (*va2.Decoder, error) {
	pf, err := s.confirmRenderTarget(service, id)
	if err != nil {
		return nil, err
	}

	info := s.ctx.Info()
	desc := accel.VideoDesc{
		Width:  info.Width,
		Height: info.Height,
		Format: pf,
	}

	cfg, err := s.confirmDecoderConfig(service, id, desc)
	if err != nil {
		return nil, err
	}
	if err := s.configureRenderer(provider); err != nil {
		return nil, err
	}

	accelService, err := manager.AccelerationService(device)
	if err != nil {
		return nil, err
	}
	count := hwcompat.DecodeSurfaceCount(s.env.ModernPlatform())
	pool := surface.NewPool(count, func(int) (accel.SurfaceHandle, error) {
		return accelService.CreateSurface(desc.Width, desc.Height, pf)
	}, s.flushHardware)
	if err := pool.Allocate(count); err != nil {
		return nil, err
	}

	targets := make([]accel.SurfaceHandle, 0, count)
	for index := 0; index < count; index++ {
		targets = append(targets, pool.Surface(index).Handle())
	}
	hw, err := service.CreateDecoder(id, desc, cfg, targets)
	if err != nil {
		pool.Free()
		return nil, err
	}

	s.device = device
	s.pool = pool
	return va2.New(id, s.ctx, hw, device.Acquire(), pool), nil
}

// confirmRenderTarget picks the NV12 render target the device offers.
func (s *Stage) confirmRenderTarget(service accel.DecoderService, id uuid.UUID) (accel.PixelFormat, error) {
	targets, err := service.RenderTargets(id)
	if err != nil {
		return accel.PixelFormat{}, err
	}
	for _, t := range targets {
		if t.FourCC == accel.NV12.FourCC {
			return t, nil
		}
	}
	return accel.PixelFormat{}, &utils.TypeNotAcceptedError{}
}

// confirmDecoderConfig prefers the raw slice-data configuration and falls
// back to the last offered one.
func (s *Stage) confirmDecoderConfig(service accel.DecoderService, id uuid.UUID,
	desc accel.VideoDesc) (accel.PictureDecodeConfig, error) {
	configs, err := service.DecoderConfigs(id, desc)
	if err != nil {
		return accel.PictureDecodeConfig{}, err
	}
	if len(configs) == 0 {
		return accel.PictureDecodeConfig{}, &utils.TypeNotAcceptedError{}
	}
	for _, cfg := range configs {
		if cfg.BitstreamRaw == 2 {
			return cfg, nil
		}
	}
	return configs[len(configs)-1], nil
}

// configureRenderer switches the downstream renderer onto externally
// allocated decode surfaces when it supports them.
func (s *Stage) configureRenderer(provider accel.ServiceProvider) error {
	memory, err := provider.MemoryConfiguration()
	if err != nil {
		return err
	}
	for _, t := range memory.AvailableSurfaceTypes() {
		if t == accel.SurfaceTypeDecoderRenderTarget {
			return memory.SetSurfaceType(t)
		}
	}
	return &utils.TypeNotAcceptedError{}
}

// flushHardware drains the active backend before decode surfaces go away.
func (s *Stage) flushHardware() {
	if s.backend == nil {
		return
	}
	if err := s.backend.Flush(); err != nil {
		logger.Warningf(s, "Flush before surface release failed: %v", err)
	}
}

// releaseBackend tears down the active backend and every hardware resource
// built for it. A recorded generation-1 pre-negotiation survives.
func (s *Stage) releaseBackend() {
	if s.outputAlloc != nil {
		s.outputAlloc.Close()
		s.outputAlloc = nil
	}
	if b := s.backend; b != nil {
		s.backend = nil
		b.Close()
	}
	if s.pool != nil {
		s.pool.Free()
		s.pool = nil
	}
	if s.device != nil {
		s.device.Release()
		s.device = nil
	}
}
