package h264

import (
	"fmt"
	"time"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/ugparu/govdec"
	"github.com/ugparu/govdec/utils/logger"
)

const levelUnknown = -1

// Context parses access-unit headers for one connected input and drives the
// entropy decoder. All methods run under the stage's decode-access lock.
type Context struct {
	dec   EntropyDecoder
	info  govdec.StreamInfo
	start time.Duration
	stop  time.Duration
}

// Info returns the current parsed-stream parameters.
func (c *Context) Info() govdec.StreamInfo {
	return c.info
}

// UpdateTime records the timestamp pair of the data about to be decoded.
func (c *Context) UpdateTime(start, stop time.Duration) {
	c.start = start
	c.stop = stop
}

// Decode scans data for in-band sequence headers, then hands it to the
// entropy decoder. When no picture is ready yet it returns ErrNeedMoreData.
func (c *Context) Decode(data []byte, out govdec.Sample) (int, error) {
	c.scanParameters(data)

	consumed, frame, err := c.dec.Decode(data, out.Data())
	if err != nil {
		return consumed, fmt.Errorf("entropy decode: %w", err)
	}
	if !frame {
		return consumed, govdec.ErrNeedMoreData
	}

	out.SetLen(c.info.Width * c.info.Height * 12 >> 3)
	out.SetTime(c.start, c.stop)
	return consumed, nil
}

// Flush drops buffered pictures at a segment boundary.
func (c *Context) Flush() {
	c.dec.Flush()
}

// Close releases the entropy decoder.
func (c *Context) Close() {
	c.dec.Close()
}

// scanParameters picks sequence headers out of an Annex-B framed access
// unit. Non-Annex-B data keeps the current parameters.
func (c *Context) scanParameters(data []byte) {
	var units mch264.AnnexB
	if err := units.Unmarshal(data); err != nil {
		return
	}
	for _, nalu := range units {
		if len(nalu) == 0 {
			continue
		}
		if mch264.NALUType(nalu[0]&0x1f) != mch264.NALUTypeSPS {
			continue
		}
		c.applySPS(nalu)
	}
}

func (c *Context) applySPS(nalu []byte) {
	var sps mch264.SPS
	if err := sps.Unmarshal(nalu); err != nil {
		logger.Warningf(c, "Dropping unparsable SPS: %v", err)
		return
	}

	c.info.Width = sps.Width()
	c.info.Height = sps.Height()
	c.info.Level = int(sps.LevelIdc)
	c.info.RefFrames = int(sps.MaxNumRefFrames)
	if fps := sps.FPS(); fps > 0 {
		c.info.FrameDuration = time.Duration(float64(time.Second) / fps)
	}
}

func (c *Context) String() string {
	return fmt.Sprintf("H264_CONTEXT %dx%d level=%d", c.info.Width, c.info.Height, c.info.Level)
}
