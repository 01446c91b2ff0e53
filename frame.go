package rtspclient

import (
	"time"

	"github.com/camgrab/rtspclient/pkg/description"
)

// Frame is an assembled media frame.
type Frame struct {
	// frame content, as an ordered list of byte ranges.
	// For H264 and H265, each range is a NAL unit of the access unit.
	// The callee must not retain the ranges past return: they point
	// into reassembly buffers that are reused afterwards.
	Parts [][]byte

	// RTP timestamp of the frame.
	RTPTime uint32

	// wall clock of the frame, derived from the last RTCP sender
	// report. It is the zero time until a sender report is received.
	NTP time.Time
}

// Size returns the total size of the frame.
func (f *Frame) Size() int {
	n := 0
	for _, p := range f.Parts {
		n += len(p)
	}
	return n
}

// Bytes returns the frame content joined into a single slice.
func (f *Frame) Bytes() []byte {
	if len(f.Parts) == 1 {
		return f.Parts[0]
	}

	ret := make([]byte, f.Size())
	n := 0
	for _, p := range f.Parts {
		n += copy(ret[n:], p)
	}
	return ret
}

// StreamInfo describes a negotiated media stream.
type StreamInfo struct {
	// media type.
	Type description.MediaType

	// codec name.
	Codec string

	// clock rate of the stream.
	ClockRate int

	// codec configuration carried by the stream description.
	// For H264, it contains SPS and PPS.
	// For H265, it contains VPS, SPS and PPS.
	// For MPEG-4 audio, it contains the AudioSpecificConfig.
	Configs [][]byte
}
