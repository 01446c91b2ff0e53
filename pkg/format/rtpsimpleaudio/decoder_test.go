package rtpsimpleaudio

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	frame, err := d.Decode(&rtp.Packet{
		Header: rtp.Header{
			Version:     2,
			PayloadType: 0,
		},
		Payload: []byte{0x01, 0x02, 0x03, 0x04},
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, frame)
}

func TestDecodeEmpty(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	_, err = d.Decode(&rtp.Packet{})
	require.Error(t, err)
}
