// Package flacutil works with the fixed-size head of a FLAC stream: the
// "fLaC" marker, the first metadata block header and the STREAMINFO block.
// Together these occupy the first 42 bytes of every FLAC file, which is all
// the provider layer needs to derive durations and splice headers ahead of
// mid-file ranges.
package flacutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the byte length of the FLAC marker, the STREAMINFO block
// header and the STREAMINFO body: 4 + 4 + 34.
const HeaderLen = 42

var (
	// ErrNotFlac is returned when the stream does not start with "fLaC"
	// followed by a STREAMINFO block.
	ErrNotFlac = errors.New("not a flac stream")

	flacMarker = [4]byte{'f', 'L', 'a', 'C'}
)

// StreamInfo is the decoded STREAMINFO metadata block.
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32
	MaxFrameSize  uint32
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	TotalSamples  uint64
	MD5           [16]byte
}

// ReadStreamInfo reads and decodes the first 42 bytes of a FLAC stream.
func ReadStreamInfo(r io.Reader) (StreamInfo, error) {
	var buf [HeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return StreamInfo{}, fmt.Errorf("read flac header: %w", err)
	}
	return parseHeader(buf[:])
}

// ReadHeader decodes the stream head and returns a reader that replays the
// consumed 42 bytes ahead of the remaining stream, so callers can keep
// decoding from byte zero.
func ReadHeader(r io.Reader) (StreamInfo, io.Reader, error) {
	var buf [HeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return StreamInfo{}, nil, fmt.Errorf("read flac header: %w", err)
	}
	info, err := parseHeader(buf[:])
	if err != nil {
		return StreamInfo{}, nil, err
	}
	return info, io.MultiReader(bytes.NewReader(buf[:]), r), nil
}

func parseHeader(buf []byte) (StreamInfo, error) {
	if !bytes.Equal(buf[:4], flacMarker[:]) {
		return StreamInfo{}, ErrNotFlac
	}
	// Block header: 1 bit last-block flag, 7 bits type (0 = STREAMINFO),
	// 24 bits length.
	if buf[4]&0x7f != 0 {
		return StreamInfo{}, ErrNotFlac
	}
	length := uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
	if length != 34 {
		return StreamInfo{}, ErrNotFlac
	}

	b := buf[8:]
	var info StreamInfo
	info.MinBlockSize = binary.BigEndian.Uint16(b[0:2])
	info.MaxBlockSize = binary.BigEndian.Uint16(b[2:4])
	info.MinFrameSize = uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6])
	info.MaxFrameSize = uint32(b[7])<<16 | uint32(b[8])<<8 | uint32(b[9])
	// 20 bits sample rate, 3 bits channels-1, 5 bits bps-1, 36 bits total
	// samples, packed big-endian across b[10:18].
	info.SampleRate = uint32(b[10])<<12 | uint32(b[11])<<4 | uint32(b[12])>>4
	info.Channels = (b[12]>>1)&0x07 + 1
	info.BitsPerSample = ((b[12]&0x01)<<4 | b[13]>>4) + 1
	info.TotalSamples = uint64(b[13]&0x0f)<<32 |
		uint64(b[14])<<24 | uint64(b[15])<<16 | uint64(b[16])<<8 | uint64(b[17])
	copy(info.MD5[:], b[18:34])
	return info, nil
}

// Marshal re-encodes the stream head. The last-metadata-block flag is set,
// so the emitted header is a complete metadata section on its own; a decoder
// fed Marshal() followed by audio frames sees a well-formed stream.
func (si StreamInfo) Marshal() []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[:4], flacMarker[:])
	buf[4] = 0x80 // last block, type STREAMINFO
	buf[7] = 34

	b := buf[8:]
	binary.BigEndian.PutUint16(b[0:2], si.MinBlockSize)
	binary.BigEndian.PutUint16(b[2:4], si.MaxBlockSize)
	b[4], b[5], b[6] = byte(si.MinFrameSize>>16), byte(si.MinFrameSize>>8), byte(si.MinFrameSize)
	b[7], b[8], b[9] = byte(si.MaxFrameSize>>16), byte(si.MaxFrameSize>>8), byte(si.MaxFrameSize)
	b[10] = byte(si.SampleRate >> 12)
	b[11] = byte(si.SampleRate >> 4)
	b[12] = byte(si.SampleRate)<<4 | (si.Channels-1)<<1 | (si.BitsPerSample-1)>>4
	b[13] = (si.BitsPerSample-1)<<4 | byte(si.TotalSamples>>32)&0x0f
	b[14], b[15], b[16], b[17] = byte(si.TotalSamples>>24), byte(si.TotalSamples>>16),
		byte(si.TotalSamples>>8), byte(si.TotalSamples)
	copy(b[18:34], si.MD5[:])
	return buf
}

// Duration returns the stream duration in whole seconds, rounded to the
// nearest. Zero when the sample rate or total sample count is unknown.
func (si StreamInfo) Duration() uint64 {
	if si.SampleRate == 0 || si.TotalSamples == 0 {
		return 0
	}
	return (si.TotalSamples + uint64(si.SampleRate)/2) / uint64(si.SampleRate)
}

// SpliceHeader prepends the re-encoded stream head to body, so a decoder
// can start on a stream whose first bytes were cut off by a range request.
func SpliceHeader(si StreamInfo, body io.Reader) io.Reader {
	return io.MultiReader(bytes.NewReader(si.Marshal()), body)
}
