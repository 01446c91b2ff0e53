package base

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var casesResponse = []struct {
	name string
	byts []byte
	res  Response
}{
	{
		"ok",
		[]byte("RTSP/1.0 200 OK\r\n" +
			"CSeq: 1\r\n" +
			"Public: DESCRIBE, SETUP, TEARDOWN, PLAY, PAUSE\r\n" +
			"\r\n"),
		Response{
			StatusCode:    200,
			StatusMessage: "OK",
			Header: NewHeader(
				"CSeq", "1",
				"Public", "DESCRIBE, SETUP, TEARDOWN, PLAY, PAUSE",
			),
		},
	},
	{
		"ok with body",
		[]byte("RTSP/1.0 200 OK\r\n" +
			"CSeq: 2\r\n" +
			"Content-Length: 7\r\n" +
			"\r\n" +
			"testing"),
		Response{
			StatusCode:    200,
			StatusMessage: "OK",
			Header: NewHeader(
				"CSeq", "2",
				"Content-Length", "7",
			),
			Body: []byte("testing"),
		},
	},
}

func TestResponseUnmarshal(t *testing.T) {
	for _, ca := range casesResponse {
		t.Run(ca.name, func(t *testing.T) {
			var res Response
			err := res.Unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.NoError(t, err)
			require.Equal(t, ca.res, res)
		})
	}
}

func TestResponseMarshal(t *testing.T) {
	for _, ca := range casesResponse {
		t.Run(ca.name, func(t *testing.T) {
			byts, err := ca.res.Marshal()
			require.NoError(t, err)
			require.Equal(t, ca.byts, byts)
		})
	}
}

func TestResponseUnmarshalEmptyStatusMessage(t *testing.T) {
	var res Response
	err := res.Unmarshal(bufio.NewReader(bytes.NewBufferString(
		"RTSP/1.0 404\r\n" +
			"CSeq: 3\r\n" +
			"\r\n")))
	require.NoError(t, err)
	require.Equal(t, StatusCode(404), res.StatusCode)
}

func TestResponseMarshalAutomaticStatusMessage(t *testing.T) {
	res := Response{
		StatusCode: StatusUnauthorized,
		Header:     NewHeader("CSeq", "4"),
	}

	byts, err := res.Marshal()
	require.NoError(t, err)
	require.Equal(t, []byte("RTSP/1.0 401 Unauthorized\r\n"+
		"CSeq: 4\r\n"+
		"\r\n"), byts)
}

func TestResponseUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		byts []byte
	}{
		{"empty", []byte{}},
		{"invalid protocol", []byte("RTSP/2.0 200 OK\r\n\r\n")},
		{"invalid code", []byte("RTSP/1.0 str OK\r\n\r\n")},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var res Response
			err := res.Unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.Error(t, err)
		})
	}
}
