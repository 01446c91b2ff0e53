package format

import (
	"fmt"
	"strconv"

	"github.com/camgrab/rtspclient/pkg/format/rtpamr"
)

// AMR is the RTP format for the AMR and AMR-WB codecs.
// Specification: https://datatracker.ietf.org/doc/html/rfc4867
type AMR struct {
	PayloadTyp uint8
	Wideband   bool

	// whether the payload is octet-aligned. Otherwise,
	// bandwidth-efficient mode is used.
	OctetAlign bool
}

func (f *AMR) unmarshal(ctx *unmarshalContext) error {
	f.PayloadTyp = ctx.payloadType
	f.Wideband = (ctx.codec == "amr-wb")

	for key, val := range ctx.fmtp {
		if key == "octet-align" {
			tmp, err := strconv.ParseUint(val, 10, 31)
			if err != nil {
				return fmt.Errorf("invalid octet-align (%v)", val)
			}
			f.OctetAlign = (tmp == 1)
		}
	}

	return nil
}

// Codec implements Format.
func (f *AMR) Codec() string {
	if f.Wideband {
		return "AMR-WB"
	}
	return "AMR"
}

// ClockRate implements Format.
func (f *AMR) ClockRate() int {
	if f.Wideband {
		return 16000
	}
	return 8000
}

// PayloadType implements Format.
func (f *AMR) PayloadType() uint8 {
	return f.PayloadTyp
}

// RTPMap implements Format.
func (f *AMR) RTPMap() string {
	if f.Wideband {
		return "AMR-WB/16000"
	}
	return "AMR/8000"
}

// FMTP implements Format.
func (f *AMR) FMTP() map[string]string {
	if f.OctetAlign {
		return map[string]string{"octet-align": "1"}
	}
	return nil
}

// CreateDecoder creates a decoder able to decode the content of the format.
func (f *AMR) CreateDecoder() (*rtpamr.Decoder, error) {
	d := &rtpamr.Decoder{
		Wideband: f.Wideband,
	}

	err := d.Init()
	if err != nil {
		return nil, err
	}

	return d, nil
}
