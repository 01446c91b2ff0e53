// Package rtpmpegts contains a RTP/MPEG-TS depayloader.
package rtpmpegts

import (
	"fmt"

	"github.com/pion/rtp"
)

// PacketSize is the size of a MPEG-TS packet.
const PacketSize = 188

const syncByte = 0x47

// Decoder is a RTP/MPEG-TS depayloader.
// The payload is a raw burst of transport-stream packets; it is handed
// to the caller unchanged after alignment and sync-byte validation.
// Specification: https://datatracker.ietf.org/doc/html/rfc2250
type Decoder struct{}

// Init initializes the decoder.
func (d *Decoder) Init() error {
	return nil
}

// Decode validates and returns the transport-stream bytes carried
// by a RTP packet.
func (d *Decoder) Decode(pkt *rtp.Packet) ([]byte, error) {
	n := len(pkt.Payload)
	if n == 0 || (n%PacketSize) != 0 {
		return nil, fmt.Errorf("invalid MPEG-TS payload length (%d)", n)
	}

	for off := 0; off < n; off += PacketSize {
		if pkt.Payload[off] != syncByte {
			return nil, fmt.Errorf("missing sync byte at offset %d", off)
		}
	}

	return pkt.Payload, nil
}
