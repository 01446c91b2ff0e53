package format

import (
	"fmt"
	"strconv"
	"strings"
)

// Generic is a format without a dedicated depayloader.
type Generic struct {
	PayloadTyp uint8
	RTPMa      string
	FMTPs      map[string]string

	clockRate int
}

func (f *Generic) unmarshal(ctx *unmarshalContext) error {
	f.PayloadTyp = ctx.payloadType
	f.RTPMa = ctx.rtpMap
	f.FMTPs = ctx.fmtp

	if ctx.clock != "" {
		// the clock rate may carry a channel count after a slash
		tmp, err := strconv.ParseInt(strings.Split(ctx.clock, "/")[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid clock rate (%v)", ctx.clock)
		}
		f.clockRate = int(tmp)
	}

	return nil
}

// Codec implements Format.
func (f *Generic) Codec() string {
	return "Generic"
}

// ClockRate implements Format.
func (f *Generic) ClockRate() int {
	return f.clockRate
}

// PayloadType implements Format.
func (f *Generic) PayloadType() uint8 {
	return f.PayloadTyp
}

// RTPMap implements Format.
func (f *Generic) RTPMap() string {
	return f.RTPMa
}

// FMTP implements Format.
func (f *Generic) FMTP() map[string]string {
	return f.FMTPs
}
