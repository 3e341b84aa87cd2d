package h264

import (
	"encoding/binary"
	"errors"
)

var ErrDecconfInvalid = errors.New("h264parser: AVCDecoderConfRecord invalid")

// AVCDecoderConfRecord represents the AVC decoder configuration record
// carried as codec private data in a compressed input format.
type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8    // Profile indication for the AVC stream.
	ProfileCompatibility uint8    // Profile compatibility for the AVC stream.
	AVCLevelIndication   uint8    // Level indication for the AVC stream.
	LengthSizeMinusOne   uint8    // Length size (in bytes) minus one for the AVC stream.
	SPS                  [][]byte // Sequence Parameter Sets (SPS) containing the SPS NALUs.
	PPS                  [][]byte // Picture Parameter Sets (PPS) containing the PPS NALUs.
}

const (
	minRecordLength           = 7
	lengthFieldSize           = 2
	maskLengthSizeMinusOne    = 0x03
	maskLengthSizeMinusOneInv = 0xfc
	maskSPSCount              = 0x1f
	maskSPSCountInv           = 0xe0
)

// Unmarshal decodes the binary representation of AVCDecoderConfRecord from
// the given byte slice. It returns the number of bytes read and any decoding
// error encountered.
func (avc *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < minRecordLength {
		return 0, ErrDecconfInvalid
	}

	avc.AVCProfileIndication = b[1]
	avc.ProfileCompatibility = b[2]
	avc.AVCLevelIndication = b[3]
	avc.LengthSizeMinusOne = b[4] & maskLengthSizeMinusOne
	spsCount := int(b[5] & maskSPSCount)
	n = 6

	for range spsCount {
		if len(b) < n+lengthFieldSize {
			return n, ErrDecconfInvalid
		}
		spsLen := int(binary.BigEndian.Uint16(b[n:]))
		n += lengthFieldSize

		if len(b) < n+spsLen {
			return n, ErrDecconfInvalid
		}
		avc.SPS = append(avc.SPS, b[n:n+spsLen])
		n += spsLen
	}

	if len(b) < n+1 {
		return n, ErrDecconfInvalid
	}
	ppsCount := int(b[n])
	n++

	for range ppsCount {
		if len(b) < n+lengthFieldSize {
			return n, ErrDecconfInvalid
		}
		ppsLen := int(binary.BigEndian.Uint16(b[n:]))
		n += lengthFieldSize

		if len(b) < n+ppsLen {
			return n, ErrDecconfInvalid
		}
		avc.PPS = append(avc.PPS, b[n:n+ppsLen])
		n += ppsLen
	}

	return n, nil
}

// Len calculates the length of the binary representation, including the
// fixed-size fields and the SPS and PPS payloads.
func (avc *AVCDecoderConfRecord) Len() (n int) {
	n = minRecordLength
	for _, sps := range avc.SPS {
		n += lengthFieldSize + len(sps)
	}
	for _, pps := range avc.PPS {
		n += lengthFieldSize + len(pps)
	}
	return
}

// Marshal serializes the record into b, which must be at least Len() bytes,
// and returns the number of bytes written.
func (avc *AVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = avc.AVCProfileIndication
	b[2] = avc.ProfileCompatibility
	b[3] = avc.AVCLevelIndication
	b[4] = avc.LengthSizeMinusOne | maskLengthSizeMinusOneInv
	b[5] = uint8(len(avc.SPS)) | maskSPSCountInv //nolint:gosec // SPS count fits in 5 bits
	n = 6

	for _, sps := range avc.SPS {
		binary.BigEndian.PutUint16(b[n:], uint16(len(sps))) //nolint:gosec // SPS length fits in 16 bits
		n += lengthFieldSize
		copy(b[n:], sps)
		n += len(sps)
	}

	b[n] = uint8(len(avc.PPS)) //nolint:gosec // PPS count fits in 8 bits
	n++

	for _, pps := range avc.PPS {
		binary.BigEndian.PutUint16(b[n:], uint16(len(pps))) //nolint:gosec // PPS length fits in 16 bits
		n += lengthFieldSize
		copy(b[n:], pps)
		n += len(pps)
	}

	return
}
