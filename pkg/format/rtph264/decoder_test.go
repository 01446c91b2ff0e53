package rtph264

import (
	"bytes"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func mergeBytes(vals ...[]byte) []byte {
	size := 0
	for _, v := range vals {
		size += len(v)
	}
	res := make([]byte, size)

	pos := 0
	for _, v := range vals {
		pos += copy(res[pos:], v)
	}

	return res
}

func packetWith(seq uint16, marker bool, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      2289527317,
			SSRC:           0x9dbb7812,
		},
		Payload: payload,
	}
}

func TestDecodeSingleNALU(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	nalu := []byte{0x01, 0x02, 0x03, 0x04}

	nalus, err := d.Decode(packetWith(17645, true, nalu))
	require.NoError(t, err)
	require.Equal(t, [][]byte{nalu}, nalus)
}

func TestDecodeEmptyPayload(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	_, err = d.Decode(packetWith(17645, true, nil))
	require.Error(t, err)
}

// the concatenation of the fragment payloads must equal the emitted
// NALU payload, modulo the reconstructed NALU header
func TestDecodeFUA(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	frag1 := bytes.Repeat([]byte{0x11}, 100)
	frag2 := bytes.Repeat([]byte{0x22}, 100)
	frag3 := bytes.Repeat([]byte{0x33}, 100)

	// FU indicator: NRI=3, type 28. FU header: S/E + type 5 (IDR)
	_, err = d.Decode(packetWith(100, false, mergeBytes([]byte{0x7C, 0x85}, frag1)))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode(packetWith(101, false, mergeBytes([]byte{0x7C, 0x05}, frag2)))
	require.Equal(t, ErrMorePacketsNeeded, err)

	nalus, err := d.Decode(packetWith(102, true, mergeBytes([]byte{0x7C, 0x45}, frag3)))
	require.NoError(t, err)
	require.Equal(t, [][]byte{
		mergeBytes([]byte{0x65}, frag1, frag2, frag3),
	}, nalus)
}

func TestDecodeFUAMissingPacket(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	_, err = d.Decode(packetWith(100, false, []byte{0x7C, 0x85, 0x01}))
	require.Equal(t, ErrMorePacketsNeeded, err)

	// a sequence number gap discards the in-flight reassembly state
	_, err = d.Decode(packetWith(102, false, []byte{0x7C, 0x05, 0x02}))
	require.Error(t, err)
	require.NotEqual(t, ErrMorePacketsNeeded, err)

	// a non-starting fragment right after the discard is invalid too
	_, err = d.Decode(packetWith(103, true, []byte{0x7C, 0x45, 0x03}))
	require.Error(t, err)
}

func TestDecodeFUANonStarting(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	_, err = d.Decode(packetWith(100, false, []byte{0x7C, 0x05, 0x01}))
	require.Equal(t, ErrNonStartingPacketAndNoPrevious, err)
}

func TestDecodeSTAPA(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	nalus, err := d.Decode(packetWith(100, true, []byte{
		0x18,             // STAP-A
		0x00, 0x02, 0x67, 0x01, // NALU 1
		0x00, 0x02, 0x68, 0x02, // NALU 2
	}))
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x67, 0x01}, {0x68, 0x02}}, nalus)
}

func TestDecodeMTAP16(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	nalus, err := d.Decode(packetWith(100, true, []byte{
		0x1A,       // MTAP16
		0x00, 0x00, // DON base
		0x00, 0x06, // size
		0x00,       // DOND
		0x00, 0x00, // TS offset
		0x67, 0x01, 0x02, // NALU
	}))
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x67, 0x01, 0x02}}, nalus)
}

func TestDecodeAccumulatesUntilMarker(t *testing.T) {
	d := &Decoder{}
	err := d.Init()
	require.NoError(t, err)

	_, err = d.Decode(packetWith(100, false, []byte{0x67, 0x01}))
	require.Equal(t, ErrMorePacketsNeeded, err)

	nalus, err := d.Decode(packetWith(101, true, []byte{0x65, 0x02}))
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x67, 0x01}, {0x65, 0x02}}, nalus)
}

func TestInitRejectsPacketizationMode2(t *testing.T) {
	d := &Decoder{PacketizationMode: 2}
	require.Error(t, d.Init())
}
