// Package rtpamr contains a RTP/AMR depayloader.
package rtpamr

import (
	"fmt"

	"github.com/pion/rtp"
)

// size in bytes of the speech payload of each AMR frame type.
var frameSizeNB = []int{12, 13, 15, 17, 19, 20, 26, 31, 5, 0, 0, 0, 0, 0, 0, 0}

// size in bytes of the speech payload of each AMR-WB frame type.
var frameSizeWB = []int{17, 23, 32, 36, 40, 46, 50, 58, 60, 5, 0, 0, 0, 0, 0, 0}

// Decoder is a RTP/AMR depayloader, working in octet-aligned mode.
// Specification: https://datatracker.ietf.org/doc/html/rfc4867
type Decoder struct {
	// whether the codec is AMR-WB.
	Wideband bool

	frameSizes []int
}

// Init initializes the decoder.
func (d *Decoder) Init() error {
	if d.Wideband {
		d.frameSizes = frameSizeWB
	} else {
		d.frameSizes = frameSizeNB
	}
	return nil
}

// Decode decodes AMR frames from a RTP packet.
// Each returned frame is prefixed by its TOC entry.
func (d *Decoder) Decode(pkt *rtp.Packet) ([][]byte, error) {
	if len(pkt.Payload) < 2 {
		return nil, fmt.Errorf("payload is too short")
	}

	// CMR (1 byte in octet-aligned mode), ignored
	payload := pkt.Payload[1:]

	// table of contents: one byte per frame,
	// the F bit signals a following entry
	var toc []byte
	for {
		if len(payload) == 0 {
			return nil, fmt.Errorf("invalid TOC")
		}

		entry := payload[0]
		payload = payload[1:]
		toc = append(toc, entry)

		if (entry & 0x80) == 0 {
			break
		}
	}

	frames := make([][]byte, 0, len(toc))

	for _, entry := range toc {
		frameType := (entry >> 3) & 0x0F
		size := d.frameSizes[frameType]

		if size == 0 && frameType != 15 { // 15 = NO_DATA
			return nil, fmt.Errorf("invalid frame type (%d)", frameType)
		}

		if len(payload) < size {
			return nil, fmt.Errorf("payload is too short")
		}

		frame := make([]byte, 1+size)
		frame[0] = entry & 0x7F
		copy(frame[1:], payload[:size])
		payload = payload[size:]

		frames = append(frames, frame)
	}

	return frames, nil
}
