package rtpamr

import (
	"bytes"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func packetWith(payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:     2,
			Marker:      true,
			PayloadType: 98,
		},
		Payload: payload,
	}
}

func TestDecodeSingleFrame(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	speech := bytes.Repeat([]byte{0x55}, 31)

	// CMR, then TOC with F=0, FT=7 (AMR 12.20 kbit/s)
	payload := append([]byte{0xF0, 0x3C}, speech...)

	frames, err := d.Decode(packetWith(payload))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, append([]byte{0x3C}, speech...), frames[0])
}

func TestDecodeMultipleFrames(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	speech1 := bytes.Repeat([]byte{0x11}, 12)
	speech2 := bytes.Repeat([]byte{0x22}, 12)

	// two TOC entries, the first with F=1
	payload := []byte{0xF0, 0x84, 0x04}
	payload = append(payload, speech1...)
	payload = append(payload, speech2...)

	frames, err := d.Decode(packetWith(payload))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, append([]byte{0x04}, speech1...), frames[0])
	require.Equal(t, append([]byte{0x04}, speech2...), frames[1])
}

func TestDecodeErrors(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	// empty payload
	_, err = d.Decode(packetWith(nil))
	require.Error(t, err)

	// truncated speech data
	_, err = d.Decode(packetWith([]byte{0xF0, 0x3C, 0x01}))
	require.Error(t, err)

	// invalid frame type
	_, err = d.Decode(packetWith([]byte{0xF0, 0x58, 0x01}))
	require.Error(t, err)
}
