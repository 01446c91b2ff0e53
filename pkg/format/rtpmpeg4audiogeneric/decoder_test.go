package rtpmpeg4audiogeneric

import (
	"bytes"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func packetWith(seq uint16, marker bool, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      87425,
			SSRC:           0x9dbb7812,
		},
		Payload: payload,
	}
}

// AU header of the AAC-hbr mode: 13-bit size, 3-bit index
func auHeader(size int, index int) []byte {
	v := uint16(size)<<3 | uint16(index)
	return []byte{byte(v >> 8), byte(v)}
}

func adtsWrap(au []byte) []byte {
	frameLen := 7 + len(au)
	header := []byte{
		0xFF, 0xF1, // syncword, MPEG-4, no CRC
		0x4C,                                    // AAC-LC, 48000
		0x80 | byte(frameLen>>11),               // stereo
		byte(frameLen >> 3),
		byte(frameLen&0x07)<<5 | 0x1F, // buffer fullness
		0xFC,
	}
	return append(header, au...)
}

func TestDecodeSingleAU(t *testing.T) {
	d := &Decoder{SizeLength: 13, IndexLength: 3, IndexDeltaLength: 3}
	err := d.Init()
	require.NoError(t, err)

	au := bytes.Repeat([]byte{0x0f}, 20)

	payload := append([]byte{0x00, 0x10}, auHeader(20, 0)...)
	payload = append(payload, au...)

	aus, err := d.Decode(packetWith(100, true, payload))
	require.NoError(t, err)
	require.Equal(t, [][]byte{au}, aus)
}

func TestDecodeMultipleAUs(t *testing.T) {
	d := &Decoder{SizeLength: 13, IndexLength: 3, IndexDeltaLength: 3}
	err := d.Init()
	require.NoError(t, err)

	au1 := bytes.Repeat([]byte{0x01}, 10)
	au2 := bytes.Repeat([]byte{0x02}, 15)

	// AU-headers-length = 32 bits
	payload := []byte{0x00, 0x20}
	payload = append(payload, auHeader(10, 0)...)
	payload = append(payload, auHeader(15, 0)...)
	payload = append(payload, au1...)
	payload = append(payload, au2...)

	aus, err := d.Decode(packetWith(100, true, payload))
	require.NoError(t, err)
	require.Equal(t, [][]byte{au1, au2}, aus)
}

// each fragment announces its own length; the AU is emitted
// when the packet with the marker arrives
func TestDecodeFragmentedAU(t *testing.T) {
	d := &Decoder{SizeLength: 13, IndexLength: 3, IndexDeltaLength: 3}
	err := d.Init()
	require.NoError(t, err)

	frag1 := bytes.Repeat([]byte{0x01}, 30)
	frag2 := bytes.Repeat([]byte{0x02}, 30)

	payload := append([]byte{0x00, 0x10}, auHeader(30, 0)...)
	payload = append(payload, frag1...)

	_, err = d.Decode(packetWith(100, false, payload))
	require.Equal(t, ErrMorePacketsNeeded, err)

	payload = append([]byte{0x00, 0x10}, auHeader(30, 0)...)
	payload = append(payload, frag2...)

	aus, err := d.Decode(packetWith(101, true, payload))
	require.NoError(t, err)
	require.Equal(t, [][]byte{append(append([]byte(nil), frag1...), frag2...)}, aus)
}

// a sequence number gap discards the in-flight fragments
func TestDecodeFragmentedAUMissingPacket(t *testing.T) {
	d := &Decoder{SizeLength: 13, IndexLength: 3, IndexDeltaLength: 3}
	err := d.Init()
	require.NoError(t, err)

	payload := append([]byte{0x00, 0x10}, auHeader(4, 0)...)
	payload = append(payload, 0x01, 0x02, 0x03, 0x04)

	_, err = d.Decode(packetWith(100, false, payload))
	require.Equal(t, ErrMorePacketsNeeded, err)

	payload = append([]byte{0x00, 0x10}, auHeader(4, 0)...)
	payload = append(payload, 0x05, 0x06, 0x07, 0x08)

	_, err = d.Decode(packetWith(102, true, payload))
	require.Error(t, err)
	require.NotEqual(t, ErrMorePacketsNeeded, err)
}

// some cameras wrap AUs into ADTS; the wrapping is detected on the
// first AU and stripped from every following one
func TestDecodeADTS(t *testing.T) {
	d := &Decoder{SizeLength: 13, IndexLength: 3, IndexDeltaLength: 3}
	err := d.Init()
	require.NoError(t, err)

	au1 := []byte{0x01, 0x02, 0x03, 0x04}
	wrapped1 := adtsWrap(au1)

	payload := append([]byte{0x00, 0x10}, auHeader(len(wrapped1), 0)...)
	payload = append(payload, wrapped1...)

	aus, err := d.Decode(packetWith(100, true, payload))
	require.NoError(t, err)
	require.Equal(t, [][]byte{au1}, aus)

	au2 := []byte{0x05, 0x06, 0x07, 0x08}
	wrapped2 := adtsWrap(au2)

	payload = append([]byte{0x00, 0x10}, auHeader(len(wrapped2), 0)...)
	payload = append(payload, wrapped2...)

	aus, err = d.Decode(packetWith(101, true, payload))
	require.NoError(t, err)
	require.Equal(t, [][]byte{au2}, aus)
}

func TestDecodeErrors(t *testing.T) {
	d := &Decoder{SizeLength: 13, IndexLength: 3, IndexDeltaLength: 3}
	err := d.Init()
	require.NoError(t, err)

	// empty payload
	_, err = d.Decode(packetWith(100, true, nil))
	require.Error(t, err)

	// zero AU-headers-length
	_, err = d.Decode(packetWith(101, true, []byte{0x00, 0x00, 0x01}))
	require.Error(t, err)

	// AU bigger than the payload
	payload := append([]byte{0x00, 0x10}, auHeader(100, 0)...)
	payload = append(payload, 0x01, 0x02)
	_, err = d.Decode(packetWith(102, true, payload))
	require.Error(t, err)
}

func TestInitRequiresSizeLength(t *testing.T) {
	d := &Decoder{}
	require.Error(t, d.Init())
}
