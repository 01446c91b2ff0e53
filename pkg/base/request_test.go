package base

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var casesRequest = []struct {
	name string
	byts []byte
	req  Request
}{
	{
		"options",
		[]byte("OPTIONS rtsp://example.com/media.mp4 RTSP/1.0\r\n" +
			"CSeq: 1\r\n" +
			"Require: implicit-play\r\n" +
			"\r\n"),
		Request{
			Method: Options,
			URL:    MustParseURL("rtsp://example.com/media.mp4"),
			Header: NewHeader(
				"CSeq", "1",
				"Require", "implicit-play",
			),
		},
	},
	{
		"describe with body",
		[]byte("DESCRIBE rtsp://example.com/media.mp4 RTSP/1.0\r\n" +
			"CSeq: 2\r\n" +
			"Content-Length: 7\r\n" +
			"\r\n" +
			"testing"),
		Request{
			Method: Describe,
			URL:    MustParseURL("rtsp://example.com/media.mp4"),
			Header: NewHeader(
				"CSeq", "2",
				"Content-Length", "7",
			),
			Body: []byte("testing"),
		},
	},
	{
		"options without url",
		[]byte("OPTIONS * RTSP/1.0\r\n" +
			"CSeq: 4\r\n" +
			"\r\n"),
		Request{
			Method: Options,
			URL:    nil,
			Header: NewHeader("CSeq", "4"),
		},
	},
}

func TestRequestUnmarshal(t *testing.T) {
	for _, ca := range casesRequest {
		t.Run(ca.name, func(t *testing.T) {
			var req Request
			err := req.Unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.NoError(t, err)
			require.Equal(t, ca.req, req)
		})
	}
}

func TestRequestMarshal(t *testing.T) {
	for _, ca := range casesRequest {
		t.Run(ca.name, func(t *testing.T) {
			byts, err := ca.req.Marshal()
			require.NoError(t, err)
			require.Equal(t, ca.byts, byts)
		})
	}
}

// headers are written back in the order they were set
func TestRequestMarshalHeaderOrder(t *testing.T) {
	req := Request{
		Method: Setup,
		URL:    MustParseURL("rtsp://example.com/media.mp4"),
		Header: NewHeader(
			"Transport", "RTP/AVP;unicast",
			"CSeq", "3",
			"Session", "abc",
		),
	}

	byts, err := req.Marshal()
	require.NoError(t, err)
	require.Equal(t, []byte("SETUP rtsp://example.com/media.mp4 RTSP/1.0\r\n"+
		"Transport: RTP/AVP;unicast\r\n"+
		"CSeq: 3\r\n"+
		"Session: abc\r\n"+
		"\r\n"), byts)
}

func TestRequestUnmarshalBareLF(t *testing.T) {
	var req Request
	err := req.Unmarshal(bufio.NewReader(bytes.NewBufferString(
		"OPTIONS rtsp://example.com/media.mp4 RTSP/1.0\n" +
			"CSeq: 1\n" +
			"\n")))
	require.NoError(t, err)
	require.Equal(t, Options, req.Method)
	require.Equal(t, HeaderValue{"1"}, req.Header.Value("CSeq"))
}

func TestRequestUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		byts []byte
	}{
		{"empty", []byte{}},
		{"missing URL", []byte("DESCRIBE RTSP/1.0\r\n\r\n")},
		{"invalid protocol", []byte("DESCRIBE rtsp://example.com RTSP/2.0\r\n\r\n")},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var req Request
			err := req.Unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.Error(t, err)
		})
	}
}

func TestRequestClone(t *testing.T) {
	req := &Request{
		Method: Describe,
		URL:    MustParseURL("rtsp://example.com/media.mp4"),
		Header: NewHeader("CSeq", "3"),
	}

	clone := req.Clone()
	clone.Header.Del("CSeq")

	require.Equal(t, HeaderValue{"3"}, req.Header.Value("CSeq"))
	require.False(t, clone.Header.Has("CSeq"))
}
