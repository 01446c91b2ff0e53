package format

import (
	"github.com/camgrab/rtspclient/pkg/format/rtpsimpleaudio"
)

// G711 is the RTP format for the G711 codec, encoded with mu-law or A-law.
// Specification: https://datatracker.ietf.org/doc/html/rfc3551
type G711 struct {
	payloadTyp uint8

	// whether to use mu-law. Otherwise, A-law is used.
	MULaw bool
}

func (f *G711) unmarshal(ctx *unmarshalContext) error {
	f.payloadTyp = ctx.payloadType

	if ctx.codec != "" {
		f.MULaw = (ctx.codec == "pcmu")
	} else {
		f.MULaw = (ctx.payloadType == 0)
	}

	return nil
}

// Codec implements Format.
func (f *G711) Codec() string {
	if f.MULaw {
		return "G711 (PCMU)"
	}
	return "G711 (PCMA)"
}

// ClockRate implements Format.
func (f *G711) ClockRate() int {
	return 8000
}

// PayloadType implements Format.
func (f *G711) PayloadType() uint8 {
	return f.payloadTyp
}

// RTPMap implements Format.
func (f *G711) RTPMap() string {
	if f.MULaw {
		return "PCMU/8000"
	}
	return "PCMA/8000"
}

// FMTP implements Format.
func (f *G711) FMTP() map[string]string {
	return nil
}

// CreateDecoder creates a decoder able to decode the content of the format.
func (f *G711) CreateDecoder() (*rtpsimpleaudio.Decoder, error) {
	d := &rtpsimpleaudio.Decoder{}

	err := d.Init()
	if err != nil {
		return nil, err
	}

	return d, nil
}
