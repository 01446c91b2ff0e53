// Package rtpsimpleaudio contains a depayloader for codecs that
// fit a whole audio frame into every RTP packet, like G.711.
package rtpsimpleaudio

import (
	"fmt"

	"github.com/pion/rtp"
)

// Decoder is a RTP depayloader for simple audio codecs.
type Decoder struct{}

// Init initializes the decoder.
func (d *Decoder) Init() error {
	return nil
}

// Decode decodes an audio frame from a RTP packet.
func (d *Decoder) Decode(pkt *rtp.Packet) ([]byte, error) {
	if len(pkt.Payload) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	return pkt.Payload, nil
}
