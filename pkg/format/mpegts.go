package format

import (
	"github.com/camgrab/rtspclient/pkg/format/rtpmpegts"
)

// MPEGTS is the RTP format for MPEG-2 transport streams.
// Specification: https://datatracker.ietf.org/doc/html/rfc2250
type MPEGTS struct {
	payloadTyp uint8
}

func (f *MPEGTS) unmarshal(ctx *unmarshalContext) error {
	f.payloadTyp = ctx.payloadType
	return nil
}

// Codec implements Format.
func (f *MPEGTS) Codec() string {
	return "MPEG-TS"
}

// ClockRate implements Format.
func (f *MPEGTS) ClockRate() int {
	return 90000
}

// PayloadType implements Format.
func (f *MPEGTS) PayloadType() uint8 {
	return f.payloadTyp
}

// RTPMap implements Format.
func (f *MPEGTS) RTPMap() string {
	return "MP2T/90000"
}

// FMTP implements Format.
func (f *MPEGTS) FMTP() map[string]string {
	return nil
}

// CreateDecoder creates a decoder able to decode the content of the format.
func (f *MPEGTS) CreateDecoder() (*rtpmpegts.Decoder, error) {
	d := &rtpmpegts.Decoder{}

	err := d.Init()
	if err != nil {
		return nil, err
	}

	return d, nil
}
