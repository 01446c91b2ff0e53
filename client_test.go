package rtspclient

import (
	"crypto/md5"
	"encoding/hex"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/camgrab/rtspclient/pkg/base"
	"github.com/camgrab/rtspclient/pkg/conn"
	"github.com/camgrab/rtspclient/pkg/headers"
	"github.com/camgrab/rtspclient/pkg/liberrors"
)

func md5HexTest(in string) string {
	h := md5.Sum([]byte(in))
	return hex.EncodeToString(h[:])
}

func mustCSeq(t *testing.T, req *base.Request) int {
	t.Helper()
	v, err := strconv.Atoi(req.Header.Value("CSeq")[0])
	require.NoError(t, err)
	return v
}

const testSDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=Stream\r\n" +
	"t=0 0\r\n" +
	"m=video 0 RTP/AVP 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=fmtp:96 packetization-mode=1\r\n" +
	"a=control:trackID=0\r\n" +
	"m=audio 0 RTP/AVP 0\r\n" +
	"a=control:trackID=1\r\n"

func writeResponse(t *testing.T, co *conn.Conn, req *base.Request, res *base.Response) {
	t.Helper()
	res.Header.Set("CSeq", req.Header.Value("CSeq"))
	err := co.WriteResponse(res)
	require.NoError(t, err)
}

// OPTIONS, DESCRIBE, SETUP x2 and PLAY against a scripted server,
// with frames and a sender report flowing afterwards.
func TestClientPlayTCP(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	events := make(chan string, 16)
	serverDone := make(chan struct{})

	go func() {
		defer close(serverDone)

		nconn, err2 := l.Accept()
		require.NoError(t, err2)
		defer nconn.Close()
		co := conn.NewConn(nconn)

		lastCSeq := 0
		readRequest := func(method base.Method) *base.Request {
			req, err3 := co.ReadRequest()
			require.NoError(t, err3)
			require.Equal(t, method, req.Method)

			// CSeq values are strictly increasing
			cseq := mustCSeq(t, req)
			require.Greater(t, cseq, lastCSeq)
			lastCSeq = cseq
			return req
		}

		req := readRequest(base.Options)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Public", "DESCRIBE, SETUP, PLAY, PAUSE, TEARDOWN, GET_PARAMETER",
			),
		})

		req = readRequest(base.Describe)
		require.Equal(t, base.HeaderValue{"application/sdp"}, req.Header.Value("Accept"))
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Content-Type", "application/sdp",
				"Content-Base", "rtsp://"+l.Addr().String()+"/stream/",
			),
			Body: []byte(testSDP),
		})

		// SETUP requests arrive in the order video, audio
		req = readRequest(base.Setup)
		require.Equal(t, "rtsp://"+l.Addr().String()+"/stream/trackID=0", req.URL.String())
		var th headers.Transport
		require.NoError(t, th.Unmarshal(req.Header.Value("Transport")))
		require.Equal(t, headers.TransportProtocolTCP, th.Protocol)
		require.Equal(t, &[2]int{0, 1}, th.InterleavedIDs)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Session", "ABCDEF;timeout=60",
				"Transport", "RTP/AVP/TCP;unicast;interleaved=0-1",
			),
		})

		req = readRequest(base.Setup)
		require.Equal(t, "rtsp://"+l.Addr().String()+"/stream/trackID=1", req.URL.String())
		require.Equal(t, base.HeaderValue{"ABCDEF"}, req.Header.Value("Session"))
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Session", "ABCDEF",
				"Transport", "RTP/AVP/TCP;unicast;interleaved=2-3",
			),
		})

		req = readRequest(base.Play)
		// the session id echoed on PLAY equals the one of the first SETUP response
		require.Equal(t, base.HeaderValue{"ABCDEF"}, req.Header.Value("Session"))
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Session", "ABCDEF",
			),
		})

		// a video frame, before any sender report
		pktBytes, _ := (&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         true,
				PayloadType:    96,
				SequenceNumber: 100,
				Timestamp:      90000,
				SSRC:           0xABCDEF01,
			},
			Payload: []byte{0x65, 0x01, 0x02},
		}).Marshal()
		err2 = co.WriteInterleavedFrame(&base.InterleavedFrame{
			Channel: 0,
			Payload: pktBytes,
		}, make([]byte, 2048))
		require.NoError(t, err2)

		// a sender report on the control channel
		srBytes, _ := (&rtcp.SenderReport{
			SSRC:    0xABCDEF01,
			NTPTime: uint64(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Unix()+2208988800) << 32,
			RTPTime: 90000,
		}).Marshal()
		err2 = co.WriteInterleavedFrame(&base.InterleavedFrame{
			Channel: 1,
			Payload: srBytes,
		}, make([]byte, 2048))
		require.NoError(t, err2)

		// the client answers the report with an empty receiver report
		fr, err2 := co.ReadInterleavedFrame()
		require.NoError(t, err2)
		require.Equal(t, 1, fr.Channel)
		require.Len(t, fr.Payload, 8)
		require.Equal(t, byte(201), fr.Payload[1])

		// a second frame, now with a known wall clock
		pktBytes, _ = (&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         true,
				PayloadType:    96,
				SequenceNumber: 101,
				Timestamp:      180000,
				SSRC:           0xABCDEF01,
			},
			Payload: []byte{0x41, 0x03, 0x04},
		}).Marshal()
		err2 = co.WriteInterleavedFrame(&base.InterleavedFrame{
			Channel: 0,
			Payload: pktBytes,
		}, make([]byte, 2048))
		require.NoError(t, err2)

		// TEARDOWN is sent by Stop()
		req, err2 = co.ReadRequest()
		if err2 == nil {
			require.Equal(t, base.Teardown, req.Method)
		}
	}()

	setupDone := make(chan struct{})
	frames := make(chan *Frame, 4)

	transport := TransportTCP
	c := &Client{
		Transport: &transport,
		OnNewVideoStream: func(info *StreamInfo) {
			events <- "video:" + info.Codec
		},
		OnNewAudioStream: func(info *StreamInfo) {
			events <- "audio:" + info.Codec
		},
		OnSetupCompleted: func() {
			close(setupDone)
		},
		OnVideoFrame: func(f *Frame) {
			frames <- &Frame{
				Parts:   [][]byte{f.Bytes()},
				RTPTime: f.RTPTime,
				NTP:     f.NTP,
			}
		},
	}

	err = c.Connect("rtsp://" + l.Addr().String() + "/stream")
	require.NoError(t, err)
	defer c.Stop() //nolint:errcheck

	select {
	case <-setupDone:
	case <-time.After(5 * time.Second):
		t.Fatal("setup not completed")
	}

	// NewVideoStream and NewAudioStream fired exactly once each,
	// in this order, before SetupMessageCompleted
	require.Equal(t, "video:H264", <-events)
	require.Equal(t, "audio:G711 (PCMU)", <-events)

	err = c.Play()
	require.NoError(t, err)

	f := <-frames
	require.Equal(t, []byte{0x65, 0x01, 0x02}, f.Parts[0])
	require.True(t, f.NTP.IsZero())

	f = <-frames
	require.Equal(t, []byte{0x41, 0x03, 0x04}, f.Parts[0])
	require.Equal(t,
		time.Date(2020, 1, 1, 0, 0, 1, 0, time.UTC).Unix(),
		f.NTP.Unix())

	c.Stop() //nolint:errcheck

	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not terminate")
	}
}

// a 401 on DESCRIBE triggers a single retry with a correct Digest
// Authorization header, the same URL and a higher CSeq.
func TestClientAuthRetry(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	serverDone := make(chan struct{})

	go func() {
		defer close(serverDone)

		nconn, err2 := l.Accept()
		require.NoError(t, err2)
		defer nconn.Close()
		co := conn.NewConn(nconn)

		req, err2 := co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Options, req.Method)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Public", "DESCRIBE, SETUP, PLAY",
			),
		})

		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Describe, req.Method)
		require.False(t, req.Header.Has("Authorization"))
		firstCSeq := mustCSeq(t, req)
		firstURL := req.URL.String()

		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusUnauthorized,
			Header: base.NewHeader(
				"WWW-Authenticate", "Digest realm=\"R\", nonce=\"N\"",
			),
		})

		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Describe, req.Method)
		require.Equal(t, firstURL, req.URL.String())
		require.Greater(t, mustCSeq(t, req), firstCSeq)

		var authHeader headers.Authorization
		require.NoError(t, authHeader.Unmarshal(req.Header.Value("Authorization")))
		require.Equal(t, headers.AuthMethodDigest, authHeader.Method)
		require.Equal(t, "myuser", authHeader.Username)

		ha1 := md5HexTest("myuser:R:mypass")
		ha2 := md5HexTest("DESCRIBE:" + firstURL)
		require.Equal(t, md5HexTest(ha1+":N:"+ha2), authHeader.Response)

		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Content-Type", "application/sdp",
				"Content-Base", "rtsp://"+l.Addr().String()+"/stream/",
			),
			Body: []byte(testSDP),
		})

		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Setup, req.Method)
		// the SETUP is authenticated too
		require.True(t, req.Header.Has("Authorization"))
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Session", "SESS1",
				"Transport", "RTP/AVP/TCP;unicast;interleaved=0-1",
			),
		})

		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Setup, req.Method)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Session", "SESS1",
				"Transport", "RTP/AVP/TCP;unicast;interleaved=2-3",
			),
		})

		co.ReadRequest() //nolint:errcheck
	}()

	setupDone := make(chan struct{})

	transport := TransportTCP
	c := &Client{
		Transport: &transport,
		OnSetupCompleted: func() {
			close(setupDone)
		},
	}

	err = c.Connect("rtsp://myuser:mypass@" + l.Addr().String() + "/stream")
	require.NoError(t, err)
	defer c.Stop() //nolint:errcheck

	select {
	case <-setupDone:
	case <-time.After(5 * time.Second):
		t.Fatal("setup not completed")
	}

	c.Stop() //nolint:errcheck

	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not terminate")
	}
}

// a 401 on a keepalive does not terminate the session.
func TestClientKeepalive401Tolerated(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	secondKeepalive := make(chan struct{})
	serverDone := make(chan struct{})

	go func() {
		defer close(serverDone)

		nconn, err2 := l.Accept()
		require.NoError(t, err2)
		defer nconn.Close()
		co := conn.NewConn(nconn)

		req, err2 := co.ReadRequest()
		require.NoError(t, err2)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Public", "DESCRIBE, SETUP, PLAY, GET_PARAMETER",
			),
		})

		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Content-Type", "application/sdp",
				"Content-Base", "rtsp://"+l.Addr().String()+"/stream/",
			),
			Body: []byte(testSDP),
		})

		for i := 0; i < 2; i++ {
			req, err2 = co.ReadRequest()
			require.NoError(t, err2)
			require.Equal(t, base.Setup, req.Method)
			// a short timeout brings the keepalive interval down to one second
			setupHeader := base.NewHeader("Session", "KSESS;timeout=2")
			setupHeader.Set("Transport", req.Header.Value("Transport"))
			writeResponse(t, co, req, &base.Response{
				StatusCode: base.StatusOK,
				Header:     setupHeader,
			})
		}

		// first keepalive: answered with 401
		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.GetParameter, req.Method)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusUnauthorized,
			Header: base.NewHeader(
				"WWW-Authenticate", "Digest realm=\"R\", nonce=\"N2\"",
			),
		})

		// the session survives: a second keepalive arrives
		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.GetParameter, req.Method)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
		})
		close(secondKeepalive)

		for {
			_, err2 = co.ReadRequest()
			if err2 != nil {
				return
			}
		}
	}()

	finished := make(chan error, 1)
	setupDone := make(chan struct{})

	transport := TransportTCP
	c := &Client{
		Transport: &transport,
		OnSetupCompleted: func() {
			close(setupDone)
		},
		OnStreamingFinished: func(err error) {
			finished <- err
		},
	}

	err = c.Connect("rtsp://" + l.Addr().String() + "/stream")
	require.NoError(t, err)
	defer c.Stop() //nolint:errcheck

	select {
	case <-setupDone:
	case <-time.After(5 * time.Second):
		t.Fatal("setup not completed")
	}

	select {
	case <-secondKeepalive:
	case err := <-finished:
		t.Fatalf("session terminated early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("second keepalive not received")
	}

	c.Stop() //nolint:errcheck
}

// Play and Pause before the handshake completes are rejected.
func TestClientPlayBeforeConnected(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	// a server that never responds
	go func() {
		nconn, err2 := l.Accept()
		if err2 != nil {
			return
		}
		defer nconn.Close()
		buf := make([]byte, 1024)
		for {
			_, err2 := nconn.Read(buf)
			if err2 != nil {
				return
			}
		}
	}()

	c := &Client{}
	err = c.Connect("rtsp://" + l.Addr().String() + "/stream")
	require.NoError(t, err)
	defer c.Stop() //nolint:errcheck

	err = c.Play()
	require.Equal(t, liberrors.ErrClientNotConnected{}, err)

	err = c.Pause()
	require.Equal(t, liberrors.ErrClientNotConnected{}, err)

	c.Stop() //nolint:errcheck

	err = c.Play()
	require.Equal(t, liberrors.ErrClientSessionClosed{}, err)
}

// no depayloader matches any media section.
func TestClientUnsupportedMedia(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		nconn, err2 := l.Accept()
		require.NoError(t, err2)
		defer nconn.Close()
		co := conn.NewConn(nconn)

		req, err2 := co.ReadRequest()
		require.NoError(t, err2)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Public", "DESCRIBE, SETUP, PLAY",
			),
		})

		req, err2 = co.ReadRequest()
		require.NoError(t, err2)
		writeResponse(t, co, req, &base.Response{
			StatusCode: base.StatusOK,
			Header: base.NewHeader(
				"Content-Type", "application/sdp",
			),
			Body: []byte("v=0\r\n" +
				"o=- 0 0 IN IP4 127.0.0.1\r\n" +
				"s=Stream\r\n" +
				"t=0 0\r\n" +
				"m=video 0 RTP/AVP 100\r\n" +
				"a=rtpmap:100 UNKNOWN/90000\r\n"),
		})
	}()

	finished := make(chan error, 1)

	transport := TransportTCP
	c := &Client{
		Transport: &transport,
		OnStreamingFinished: func(err error) {
			finished <- err
		},
	}

	err = c.Connect("rtsp://" + l.Addr().String() + "/stream")
	require.NoError(t, err)
	defer c.Stop() //nolint:errcheck

	select {
	case err := <-finished:
		require.Equal(t, liberrors.ErrClientUnsupportedMedia{}, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
	}
}
