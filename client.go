/*
Package rtspclient is a RTSP 1.0 client library for the Go programming
language, meant to pull video and audio streams from IP cameras, NVRs
and ONVIF-compliant devices.
*/
package rtspclient

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/wh8199/log"

	"github.com/camgrab/rtspclient/pkg/auth"
	"github.com/camgrab/rtspclient/pkg/base"
	"github.com/camgrab/rtspclient/pkg/conn"
	"github.com/camgrab/rtspclient/pkg/description"
	"github.com/camgrab/rtspclient/pkg/headers"
	"github.com/camgrab/rtspclient/pkg/liberrors"
	"github.com/camgrab/rtspclient/pkg/sdp"
)

const (
	maxPacketSize     = 2048
	udpMaxPayloadSize = 1472

	defaultKeepalivePeriod = 20 * time.Second
	checkStreamPeriod      = 1 * time.Second
	teardownTimeout        = 2 * time.Second
)

func emptyTimer() *time.Timer {
	t := time.NewTimer(0)
	<-t.C
	return t
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

type clientState int

const (
	clientStateInitial clientState = iota
	clientStateConnecting
	clientStatePrePlay
	clientStatePlay
)

func (s clientState) String() string {
	switch s {
	case clientStateInitial:
		return "initial"
	case clientStateConnecting:
		return "connecting"
	case clientStatePrePlay:
		return "prePlay"
	case clientStatePlay:
		return "play"
	}
	return "unknown"
}

type playReq struct {
	ra    *headers.Range
	speed float64
	res   chan error
}

type pauseReq struct {
	res chan error
}

// pending request of the asynchronous send path,
// matched with its response by CSeq.
type pendingRequest struct {
	req       *base.Request
	keepalive bool
}

// Client is a RTSP client.
//
// All the configuration fields are optional, apart from the callbacks
// needed to receive frames. Once Connect() is called, fields must not
// be changed anymore.
type Client struct {
	//
	// RTSP parameters
	//
	// timeout of read operations.
	// It defaults to 10 seconds.
	ReadTimeout time.Duration
	// timeout of write operations.
	// It defaults to 10 seconds.
	WriteTimeout time.Duration
	// the stream transport (UDP, UDP-multicast or TCP).
	// If nil, UDP is attempted first, then TCP in case the server
	// refuses the transport.
	Transport *Transport
	// media kinds to set up.
	// It defaults to MediaAll.
	Medias MediaMask
	// enable the ONVIF replay headers on PLAY requests.
	PlaybackSession bool
	// reject stream descriptions that deviate from RFC 4566.
	// By default, common deviations of IP cameras are tolerated.
	StrictSDP bool
	// accept packets from any server port.
	// Enable it to communicate with servers that do not announce
	// their ports, at the cost of a security reduction.
	AnyPortEnable bool
	// user agent header.
	// It defaults to "rtspclient".
	UserAgent string

	//
	// system functions
	//
	// function used to initialize the TCP connection.
	// It defaults to (&net.Dialer{}).DialContext.
	// It is also the hook for providing a TLS dialer for rtsps URLs.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)
	// function used to initialize UDP listeners.
	// It defaults to net.ListenPacket.
	ListenPacket func(network, address string) (net.PacketConn, error)

	//
	// callbacks
	//
	// called when a video stream has been negotiated.
	OnNewVideoStream func(*StreamInfo)
	// called when an audio stream has been negotiated.
	OnNewAudioStream func(*StreamInfo)
	// called when a video frame has been assembled.
	OnVideoFrame func(*Frame)
	// called when an audio frame has been assembled.
	OnAudioFrame func(*Frame)
	// called when all SETUP requests have completed.
	OnSetupCompleted func()
	// called when the session reaches a terminal state.
	// The error is nil when the session was closed with Stop().
	OnStreamingFinished func(error)
	// called before every request is sent.
	OnRequest func(*base.Request)
	// called after every response is received.
	OnResponse func(*base.Response)
	// called on non-fatal decoding errors of RTP or RTCP packets.
	OnDecodeError func(error)

	//
	// private
	//
	connURL             *base.URL
	dialContextProvided bool
	ctx                 context.Context
	ctxCancel           func()
	state               clientState
	handshakeDone       atomic.Bool
	nconn               net.Conn
	conn                *conn.Conn
	session             string
	sender              *auth.Sender
	cseq                int
	pending             map[int]pendingRequest
	optionsSent         bool
	useGetParameter     bool
	baseURL             *base.URL
	effectiveTransport  *Transport
	medias              []*clientMedia
	tcpMediasByChannel  map[int]*clientMedia
	keepalivePeriod     time.Duration
	keepaliveTimer      *time.Timer
	checkStreamTimer    *time.Timer
	tcpLastFrameTime    *int64
	writeMutex          sync.Mutex
	tcpBuffer           []byte
	closeError          error

	// connCloser channels
	connCloserTerminate chan struct{}
	connCloserDone      chan struct{}

	// reader channels
	readerErr  chan error
	chResponse chan *base.Response

	// in
	chPlay  chan playReq
	chPause chan pauseReq

	// out
	done chan struct{}
}

// Connect opens the connection to the server and drives the handshake
// (OPTIONS, DESCRIBE and one SETUP per selected media) in the
// background, returning immediately.
// The address must be a rtsp://, rtsps:// or http:// URL; credentials
// are taken from the URL.
func (c *Client) Connect(address string) error {
	u, err := base.ParseURL(address)
	if err != nil {
		return err
	}

	// parameters
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.Medias == 0 {
		c.Medias = MediaAll
	}
	if c.UserAgent == "" {
		c.UserAgent = "rtspclient"
	}

	// system functions
	c.dialContextProvided = (c.DialContext != nil)
	if c.DialContext == nil {
		c.DialContext = (&net.Dialer{}).DialContext
	}
	if c.ListenPacket == nil {
		c.ListenPacket = net.ListenPacket
	}

	// callbacks
	if c.OnNewVideoStream == nil {
		c.OnNewVideoStream = func(*StreamInfo) {}
	}
	if c.OnNewAudioStream == nil {
		c.OnNewAudioStream = func(*StreamInfo) {}
	}
	if c.OnVideoFrame == nil {
		c.OnVideoFrame = func(*Frame) {}
	}
	if c.OnAudioFrame == nil {
		c.OnAudioFrame = func(*Frame) {}
	}
	if c.OnSetupCompleted == nil {
		c.OnSetupCompleted = func() {}
	}
	if c.OnStreamingFinished == nil {
		c.OnStreamingFinished = func(error) {}
	}
	if c.OnRequest == nil {
		c.OnRequest = func(*base.Request) {}
	}
	if c.OnResponse == nil {
		c.OnResponse = func(*base.Response) {}
	}
	if c.OnDecodeError == nil {
		c.OnDecodeError = func(error) {}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	c.connURL = u
	c.ctx = ctx
	c.ctxCancel = ctxCancel
	c.state = clientStateInitial
	c.pending = make(map[int]pendingRequest)
	c.keepalivePeriod = defaultKeepalivePeriod
	c.keepaliveTimer = emptyTimer()
	c.checkStreamTimer = emptyTimer()
	c.tcpBuffer = make([]byte, maxPacketSize+4)
	c.chResponse = make(chan *base.Response, 8)
	c.chPlay = make(chan playReq)
	c.chPause = make(chan pauseReq)
	c.done = make(chan struct{})

	go c.run()

	return nil
}

// Stop tears down the session and closes every resource.
// It waits until all resources are closed.
func (c *Client) Stop() error {
	c.ctxCancel()
	<-c.done
	return c.closeError
}

// Wait waits until the session reaches a terminal state.
// This happens when a fatal error occurs or when Stop() is called.
func (c *Client) Wait() error {
	<-c.done
	return c.closeError
}

// Play sends a PLAY request and starts reading frames.
// It can be called only after the handshake has completed.
func (c *Client) Play() error {
	return c.play(nil, 0)
}

// PlayRange sends a PLAY request with a wall-clock range, used to pull
// recordings from devices that implement the ONVIF replay extensions.
// A zero "to" leaves the range open; a zero speed leaves the server default.
func (c *Client) PlayRange(from time.Time, to time.Time, speed float64) error {
	ra := &headers.Range{
		Value: &headers.RangeUTC{
			Start: from,
		},
	}
	if !to.IsZero() {
		v := to
		ra.Value.(*headers.RangeUTC).End = &v
	}

	return c.play(ra, speed)
}

func (c *Client) play(ra *headers.Range, speed float64) error {
	select {
	case <-c.done:
		return liberrors.ErrClientSessionClosed{}
	default:
	}

	if !c.handshakeDone.Load() {
		return liberrors.ErrClientNotConnected{}
	}

	cres := make(chan error)
	select {
	case c.chPlay <- playReq{ra: ra, speed: speed, res: cres}:
		return <-cres

	case <-c.ctx.Done():
		return liberrors.ErrClientSessionClosed{}
	}
}

// Pause sends a PAUSE request and stops reading frames.
// The session can be resumed with Play().
func (c *Client) Pause() error {
	select {
	case <-c.done:
		return liberrors.ErrClientSessionClosed{}
	default:
	}

	if !c.handshakeDone.Load() {
		return liberrors.ErrClientNotConnected{}
	}

	cres := make(chan error)
	select {
	case c.chPause <- pauseReq{res: cres}:
		return <-cres

	case <-c.ctx.Done():
		return liberrors.ErrClientSessionClosed{}
	}
}

func (c *Client) run() {
	defer close(c.done)

	err := c.runInner()
	if _, ok := err.(liberrors.ErrClientTerminated); ok {
		err = nil
	}
	c.closeError = err

	c.ctxCancel()
	c.doClose()

	c.OnStreamingFinished(err)
}

func (c *Client) runInner() error {
	// interrupt the handshake when Stop() is called before it completes
	c.connCloserTerminate = make(chan struct{})
	c.connCloserDone = make(chan struct{})
	go func() {
		defer close(c.connCloserDone)
		select {
		case <-c.ctx.Done():
			c.writeMutex.Lock()
			if c.nconn != nil {
				c.nconn.Close()
			}
			c.writeMutex.Unlock()

		case <-c.connCloserTerminate:
		}
	}()

	err := c.handshake()
	close(c.connCloserTerminate)
	<-c.connCloserDone
	if err != nil {
		return err
	}

	c.handshakeDone.Store(true)
	c.OnSetupCompleted()

	c.keepaliveTimer = time.NewTimer(c.keepalivePeriod)

	for {
		select {
		case req := <-c.chPlay:
			req.res <- c.doPlay(req.ra, req.speed)

		case req := <-c.chPause:
			req.res <- c.doPause()

		case <-c.keepaliveTimer.C:
			err := c.sendKeepalive()
			if err != nil {
				return err
			}
			c.keepaliveTimer = time.NewTimer(c.keepalivePeriod)

		case <-c.checkStreamTimer.C:
			err := c.checkStream()
			if err != nil {
				return err
			}
			c.checkStreamTimer = time.NewTimer(checkStreamPeriod)

		case res := <-c.chResponse:
			c.handleAsyncResponse(res)

		case err := <-c.readerErr:
			c.readerErr = nil
			return err

		case <-c.ctx.Done():
			return liberrors.ErrClientTerminated{}
		}
	}
}

// handshake performs OPTIONS, DESCRIBE and a SETUP per selected media.
func (c *Client) handshake() error {
	c.state = clientStateConnecting

	err := c.connOpen()
	if err != nil {
		return err
	}

	_, err = c.doOptions(c.connURL)
	if err != nil {
		return err
	}

	desc, err := c.doDescribe(c.connURL)
	if err != nil {
		return err
	}

	medias, err := c.selectMedias(desc)
	if err != nil {
		return err
	}

	for _, cm := range medias {
		err := c.doSetup(cm, desc.BaseURL)
		if err != nil {
			return err
		}

		info := &StreamInfo{
			Type:      cm.media.Type,
			Codec:     cm.format.format.Codec(),
			ClockRate: cm.format.format.ClockRate(),
			Configs:   streamConfigs(cm.format.format),
		}

		if cm.media.Type == description.MediaTypeVideo {
			c.OnNewVideoStream(info)
		} else {
			c.OnNewAudioStream(info)
		}
	}

	c.state = clientStatePrePlay
	return nil
}

// selectMedias picks, for each requested media kind, the first media
// section with a format a depayloader exists for.
func (c *Client) selectMedias(desc *description.Session) ([]*clientMedia, error) {
	var ret []*clientMedia

	pick := func(typ description.MediaType) *clientMedia {
		for _, medi := range desc.Medias {
			if medi.Type != typ {
				continue
			}

			for _, forma := range medi.Formats {
				cm := &clientMedia{c: c}
				cf := &clientFormat{format: forma}
				err := cm.initialize(medi, cf)
				if err == nil {
					return cm
				}
			}
		}
		return nil
	}

	if (c.Medias & MediaVideo) != 0 {
		if cm := pick(description.MediaTypeVideo); cm != nil {
			ret = append(ret, cm)
		}
	}

	if (c.Medias & MediaAudio) != 0 {
		if cm := pick(description.MediaTypeAudio); cm != nil {
			ret = append(ret, cm)
		}
	}

	if ret == nil {
		return nil, liberrors.ErrClientUnsupportedMedia{}
	}

	return ret, nil
}

func (c *Client) connOpen() error {
	scheme := c.connURL.Scheme

	if scheme != "rtsp" && scheme != "rtsps" && scheme != "http" {
		return fmt.Errorf("unsupported scheme '%s'", scheme)
	}

	if scheme == "rtsps" && c.Transport != nil && *c.Transport != TransportTCP {
		return fmt.Errorf("RTSPS can be used only with TCP")
	}

	// add the default port
	host := c.connURL.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		switch scheme {
		case "rtsp":
			host = net.JoinHostPort(host, "554")
		case "rtsps":
			host = net.JoinHostPort(host, "322")
		default: // http
			host = net.JoinHostPort(host, "80")
		}
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.ReadTimeout)
	defer cancel()

	if scheme == "http" {
		tunnel := &clientHTTPTunnel{
			dialContext:  c.DialContext,
			host:         host,
			path:         c.connURL.Path,
			userAgent:    c.UserAgent,
			readTimeout:  c.ReadTimeout,
			writeTimeout: c.WriteTimeout,
		}

		err := tunnel.connect(ctx)
		if err != nil {
			return liberrors.ErrClientTransportUnreachable{Err: err}
		}

		// requests inside the tunnel carry rtsp:// URIs
		ru := c.connURL.Clone()
		ru.Scheme = "rtsp"
		c.connURL = ru

		c.writeMutex.Lock()
		c.nconn = tunnel
		c.writeMutex.Unlock()
		c.conn = conn.NewConn(tunnel)
		return nil
	}

	nconn, err := c.DialContext(ctx, "tcp", host)
	if err != nil {
		return liberrors.ErrClientTransportUnreachable{Err: err}
	}

	// the TLS handshake of rtsps is delegated to DialContext;
	// the default dialer cannot provide it
	if scheme == "rtsps" && !c.dialContextProvided {
		nconn.Close()
		return fmt.Errorf("rtsps requires a DialContext that performs the TLS handshake")
	}

	c.writeMutex.Lock()
	c.nconn = nconn
	c.writeMutex.Unlock()
	c.conn = conn.NewConn(nconn)
	return nil
}

func (c *Client) doClose() {
	if c.state == clientStatePlay {
		c.stopReader()
		c.state = clientStatePrePlay
	}

	// best-effort TEARDOWN, without waiting for a response
	// beyond a short deadline
	if c.nconn != nil && c.baseURL != nil {
		c.writeMutex.Lock()
		req := &base.Request{
			Method: base.Teardown,
			URL:    c.baseURL,
			Header: base.Header{},
		}
		if c.session != "" {
			req.Header.Set("Session", base.HeaderValue{c.session})
		}
		c.cseq++
		req.Header.Set("CSeq", base.HeaderValue{strconv.FormatInt(int64(c.cseq), 10)})
		req.Header.Set("User-Agent", base.HeaderValue{c.UserAgent})
		c.nconn.SetWriteDeadline(time.Now().Add(teardownTimeout))
		c.conn.WriteRequest(req) //nolint:errcheck
		c.writeMutex.Unlock()
	}

	for _, cm := range c.medias {
		cm.stop()
		cm.close()
	}

	if c.nconn != nil {
		c.nconn.Close()
		c.nconn = nil
		c.conn = nil
	}
}

// do sends a request and waits for its response.
// A 401 response triggers a single retry with freshly computed
// credentials; a keepalive 401 is tolerated.
func (c *Client) do(req *base.Request, isKeepalive bool, allowFrames bool, retriedAuth bool) (*base.Response, error) {
	if c.session != "" {
		req.Header.Set("Session", base.HeaderValue{c.session})
	}

	if c.sender != nil && req.URL != nil {
		c.sender.AddAuthorization(req)
	}

	c.cseq++
	cseq := c.cseq
	req.Header.Set("CSeq", base.HeaderValue{strconv.FormatInt(int64(cseq), 10)})
	req.Header.Set("User-Agent", base.HeaderValue{c.UserAgent})

	c.OnRequest(req)

	c.writeMutex.Lock()
	c.nconn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	err := c.conn.WriteRequest(req)
	c.writeMutex.Unlock()
	if err != nil {
		return nil, err
	}

	res, err := c.readResponseForCSeq(cseq, allowFrames)
	if err != nil {
		return nil, err
	}

	res.OriginalRequest = req
	c.OnResponse(res)

	err = c.processResponseSession(res)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == base.StatusUnauthorized {
		if isKeepalive {
			// tolerated: the next user request re-authenticates
			log.Debug("keepalive request unauthorized, deferring re-authentication")
			c.sender = nil
			return res, nil
		}

		if retriedAuth {
			return nil, liberrors.ErrClientAuthenticationFailed{}
		}

		if c.connURL.User == nil {
			return nil, liberrors.ErrClientAuthenticationFailed{
				Err: fmt.Errorf("server requires authentication but no credentials were provided"),
			}
		}

		pass, _ := c.connURL.User.Password()
		sender := &auth.Sender{
			WWWAuth: res.Header.Value("WWW-Authenticate"),
			User:    c.connURL.User.Username(),
			Pass:    pass,
		}
		err := sender.Initialize()
		if err != nil {
			return nil, liberrors.ErrClientAuthenticationFailed{Err: err}
		}
		c.sender = sender

		// clone the request: it gets a fresh CSeq and a fresh
		// Authorization header on the way out
		clone := req.Clone()
		clone.Header.Del("CSeq")
		clone.Header.Del("Authorization")

		return c.do(clone, isKeepalive, allowFrames, true)
	}

	return res, nil
}

// readResponseForCSeq reads responses until the one matching the given
// CSeq arrives; responses of asynchronous requests met on the way are
// routed to their handler.
func (c *Client) readResponseForCSeq(cseq int, allowFrames bool) (*base.Response, error) {
	for {
		c.nconn.SetReadDeadline(time.Now().Add(c.ReadTimeout))

		var res *base.Response
		var err error
		if allowFrames {
			// interleaved frames can be received before the response,
			// when the stream is already playing
			res, err = c.conn.ReadResponseIgnoreFrames()
		} else {
			res, err = c.conn.ReadResponse()
		}
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return nil, liberrors.ErrClientTimeout{}
			}
			return nil, err
		}

		resCSeq, ok := responseCSeq(res)
		if !ok {
			return nil, liberrors.ErrClientProtocolViolation{Err: fmt.Errorf("CSeq is missing")}
		}

		if resCSeq == cseq {
			return res, nil
		}

		c.handleAsyncResponse(res)
	}
}

func responseCSeq(res *base.Response) (int, bool) {
	vals, ok := res.Header.Get("CSeq")
	if !ok || len(vals) != 1 {
		return 0, false
	}

	cseq, err := strconv.ParseInt(strings.TrimSpace(vals[0]), 10, 32)
	if err != nil {
		return 0, false
	}

	return int(cseq), true
}

// handleAsyncResponse routes a response of the asynchronous send path
// (keepalives sent while the reader owns the connection).
func (c *Client) handleAsyncResponse(res *base.Response) {
	cseq, ok := responseCSeq(res)
	if !ok {
		return
	}

	pend, ok := c.pending[cseq]
	if !ok {
		return
	}
	delete(c.pending, cseq)

	res.OriginalRequest = pend.req
	c.OnResponse(res)

	c.processResponseSession(res) //nolint:errcheck

	if pend.keepalive && res.StatusCode == base.StatusUnauthorized {
		// tolerated: the next user request re-authenticates
		log.Debug("keepalive request unauthorized, deferring re-authentication")
		c.sender = nil
	}
}

// processResponseSession captures the session id and the advertised
// timeout of a response.
func (c *Client) processResponseSession(res *base.Response) error {
	v, ok := res.Header.Get("Session")
	if !ok {
		return nil
	}

	var sx headers.Session
	err := sx.Unmarshal(v)
	if err != nil {
		return liberrors.ErrClientSessionHeaderInvalid{Err: err}
	}

	if c.session != "" && sx.Session != c.session {
		return liberrors.ErrClientSessionChanged{}
	}
	c.session = sx.Session

	if sx.Timeout != nil && *sx.Timeout > 0 {
		c.keepalivePeriod = minDuration(defaultKeepalivePeriod,
			time.Duration(*sx.Timeout)*time.Second/2)
	}

	return nil
}

func (c *Client) doOptions(u *base.URL) (*base.Response, error) {
	res, err := c.do(&base.Request{
		Method: base.Options,
		URL:    u,
	}, false, false, false)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != base.StatusOK {
		// OPTIONS is not implemented by every RTSP server;
		// tolerate only a 404
		if res.StatusCode == base.StatusNotFound {
			return res, nil
		}
		return nil, liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	c.optionsSent = true

	c.useGetParameter = func() bool {
		pub, ok := res.Header.Get("Public")
		if !ok || len(pub) != 1 {
			return false
		}

		for _, m := range strings.Split(pub[0], ",") {
			if base.Method(strings.Trim(m, " ")) == base.GetParameter {
				return true
			}
		}
		return false
	}()

	return res, nil
}

func (c *Client) doDescribe(u *base.URL) (*description.Session, error) {
	res, err := c.do(&base.Request{
		Method: base.Describe,
		URL:    u,
		Header: base.NewHeader("Accept", "application/sdp"),
	}, false, false, false)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != base.StatusOK {
		// redirect
		if res.StatusCode >= base.StatusMovedPermanently &&
			res.StatusCode <= base.StatusUseProxy &&
			len(res.Header.Value("Location")) == 1 {
			ru, err := base.ParseURL(res.Header.Value("Location")[0])
			if err != nil {
				return nil, err
			}

			if u.User != nil {
				ru.User = u.User
			}

			c.writeMutex.Lock()
			c.nconn.Close()
			c.nconn = nil
			c.writeMutex.Unlock()
			c.conn = nil
			c.session = ""
			c.sender = nil
			c.optionsSent = false

			c.connURL = ru

			err = c.connOpen()
			if err != nil {
				return nil, err
			}

			return c.doDescribe(ru)
		}

		return nil, liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	ct, ok := res.Header.Get("Content-Type")
	if !ok || len(ct) != 1 {
		return nil, liberrors.ErrClientContentTypeMissing{}
	}

	// strip encoding information from the Content-Type header
	if strings.Split(ct[0], ";")[0] != "application/sdp" {
		return nil, liberrors.ErrClientContentTypeUnsupported{CT: ct}
	}

	var sd sdp.SessionDescription
	if c.StrictSDP {
		err = sd.UnmarshalStrict(res.Body)
	} else {
		err = sd.Unmarshal(res.Body)
	}
	if err != nil {
		return nil, liberrors.ErrClientProtocolViolation{Err: err}
	}

	var desc description.Session
	err = desc.Unmarshal(&sd)
	if err != nil {
		return nil, liberrors.ErrClientProtocolViolation{Err: err}
	}

	desc.BaseURL, err = description.FindBaseURL(&sd, res, c.connURL)
	if err != nil {
		return nil, err
	}

	return &desc, nil
}

func (c *Client) doSetup(cm *clientMedia, baseURL *base.URL) error {
	transport := func() Transport {
		// transport chosen by a previous SETUP
		if c.effectiveTransport != nil {
			return *c.effectiveTransport
		}

		// transport chosen by configuration
		if c.Transport != nil {
			return *c.Transport
		}

		// try UDP first
		return TransportUDP
	}()

	// always use TCP when the control connection is encrypted or tunneled
	_, tunneled := c.nconn.(*clientHTTPTunnel)
	if c.connURL.Scheme != "rtsp" || tunneled {
		transport = TransportTCP
	}

	mediaID := len(c.medias)

	th := headers.Transport{}

	switch transport {
	case TransportUDP:
		rtpListener, rtcpListener, err := newClientUDPListenerPair(c)
		if err != nil {
			return err
		}
		cm.udpRTPListener = rtpListener
		cm.udpRTCPListener = rtcpListener

		v := headers.TransportDeliveryUnicast
		th.Delivery = &v
		th.Protocol = headers.TransportProtocolUDP
		th.ClientPorts = &[2]int{
			cm.udpRTPListener.port(),
			cm.udpRTCPListener.port(),
		}

	case TransportUDPMulticast:
		v := headers.TransportDeliveryMulticast
		th.Delivery = &v
		th.Protocol = headers.TransportProtocolUDP

	case TransportTCP:
		v := headers.TransportDeliveryUnicast
		th.Delivery = &v
		th.Protocol = headers.TransportProtocolTCP
		th.InterleavedIDs = &[2]int{mediaID * 2, mediaID*2 + 1}
	}

	mediaURL, err := cm.media.URL(baseURL)
	if err != nil {
		cm.close()
		return err
	}

	setupHeader := base.Header{}
	setupHeader.Set("Transport", th.Marshal())

	res, err := c.do(&base.Request{
		Method: base.Setup,
		URL:    mediaURL,
		Header: setupHeader,
	}, false, false, false)
	if err != nil {
		cm.close()
		return err
	}

	if res.StatusCode != base.StatusOK {
		cm.close()

		// switch transport automatically
		if res.StatusCode == base.StatusUnsupportedTransport &&
			c.effectiveTransport == nil &&
			c.Transport == nil {
			log.Info("switching to TCP because the server requested it")
			v := TransportTCP
			c.effectiveTransport = &v
			return c.doSetup(cm, baseURL)
		}

		return liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	var thRes headers.Transport
	err = thRes.Unmarshal(res.Header.Value("Transport"))
	if err != nil {
		cm.close()
		return liberrors.ErrClientTransportHeaderInvalid{Err: err}
	}

	switch transport {
	case TransportUDP:
		if thRes.Delivery != nil && *thRes.Delivery != headers.TransportDeliveryUnicast {
			cm.close()
			return liberrors.ErrClientTransportHeaderInvalidDelivery{}
		}

		if thRes.ServerPorts == nil {
			if !c.AnyPortEnable {
				cm.close()
				return liberrors.ErrClientServerPortsNotProvided{}
			}
		}

		serverIP := c.remoteIP()
		if thRes.Source != nil {
			serverIP = *thRes.Source
		}

		cm.udpRTPListener.readIP = serverIP
		cm.udpRTCPListener.readIP = serverIP

		if thRes.ServerPorts != nil {
			cm.udpRTPListener.readPort = thRes.ServerPorts[0]
			cm.udpRTPListener.writeAddr = &net.UDPAddr{
				IP:   c.remoteIP(),
				Port: thRes.ServerPorts[0],
			}
			cm.udpRTCPListener.readPort = thRes.ServerPorts[1]
			cm.udpRTCPListener.writeAddr = &net.UDPAddr{
				IP:   c.remoteIP(),
				Port: thRes.ServerPorts[1],
			}
		}

	case TransportUDPMulticast:
		if thRes.Delivery == nil || *thRes.Delivery != headers.TransportDeliveryMulticast {
			return liberrors.ErrClientTransportHeaderInvalidDelivery{}
		}

		if thRes.Ports == nil {
			return liberrors.ErrClientTransportHeaderNoPorts{}
		}

		if thRes.Destination == nil {
			return liberrors.ErrClientTransportHeaderNoDestination{}
		}

		rtpListener, err := newClientUDPListener(c, true,
			thRes.Destination.String()+":"+strconv.FormatInt(int64(thRes.Ports[0]), 10))
		if err != nil {
			return err
		}

		rtcpListener, err := newClientUDPListener(c, true,
			thRes.Destination.String()+":"+strconv.FormatInt(int64(thRes.Ports[1]), 10))
		if err != nil {
			rtpListener.close()
			return err
		}

		cm.udpRTPListener = rtpListener
		cm.udpRTCPListener = rtcpListener

		cm.udpRTPListener.readIP = c.remoteIP()
		cm.udpRTPListener.readPort = thRes.Ports[0]
		cm.udpRTPListener.writeAddr = &net.UDPAddr{
			IP:   *thRes.Destination,
			Port: thRes.Ports[0],
		}

		cm.udpRTCPListener.readIP = c.remoteIP()
		cm.udpRTCPListener.readPort = thRes.Ports[1]
		cm.udpRTCPListener.writeAddr = &net.UDPAddr{
			IP:   *thRes.Destination,
			Port: thRes.Ports[1],
		}

	case TransportTCP:
		if thRes.Delivery != nil && *thRes.Delivery != headers.TransportDeliveryUnicast {
			return liberrors.ErrClientTransportHeaderInvalidDelivery{}
		}

		if thRes.InterleavedIDs == nil {
			return liberrors.ErrClientTransportHeaderNoInterleavedIDs{}
		}

		// the server is entitled to rewrite the channel pair
		if (thRes.InterleavedIDs[0]%2) != 0 ||
			(thRes.InterleavedIDs[0]+1) != thRes.InterleavedIDs[1] {
			return liberrors.ErrClientTransportHeaderInvalidInterleavedIDs{}
		}

		if _, ok := c.tcpMediasByChannel[thRes.InterleavedIDs[0]]; ok {
			return liberrors.ErrClientTransportHeaderInvalidInterleavedIDs{}
		}

		if c.tcpMediasByChannel == nil {
			c.tcpMediasByChannel = make(map[int]*clientMedia)
		}

		c.tcpMediasByChannel[thRes.InterleavedIDs[0]] = cm
		cm.tcpChannel = thRes.InterleavedIDs[0]
	}

	c.medias = append(c.medias, cm)
	c.baseURL = baseURL
	c.effectiveTransport = &transport

	cm.start()

	return nil
}

func (c *Client) remoteIP() net.IP {
	if addr, ok := c.nconn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

func (c *Client) doPlay(ra *headers.Range, speed float64) error {
	if c.state != clientStatePlay && c.state != clientStatePrePlay {
		return liberrors.ErrClientInvalidState{
			AllowedList: []fmt.Stringer{clientStatePrePlay},
			State:       c.state,
		}
	}

	if c.state == clientStatePlay {
		return nil
	}

	// open the firewall by sending test packets to the counterpart.
	// this is done before sending the request.
	// it is not done with multicast, otherwise the RTP packet would be
	// broadcast to all listeners, including us
	if *c.effectiveTransport == TransportUDP {
		for _, cm := range c.medias {
			byts, _ := (&rtp.Packet{Header: rtp.Header{Version: 2}}).Marshal()
			cm.udpRTPListener.write(byts) //nolint:errcheck

			byts, _ = (&rtcp.ReceiverReport{}).Marshal()
			cm.udpRTCPListener.write(byts) //nolint:errcheck
		}
	}

	// Range is mandatory with some servers
	if ra == nil {
		ra = &headers.Range{
			Value: &headers.RangeNPT{
				Start: 0,
			},
		}
	}

	header := base.Header{}
	header.Set("Range", ra.Marshal())

	if c.PlaybackSession {
		header.Set("Require", base.HeaderValue{"onvif-replay"})
		header.Set("Rate-Control", base.HeaderValue{"no"})
	}

	if speed != 0 {
		header.Set("Speed", base.HeaderValue{strconv.FormatFloat(speed, 'f', -1, 64)})
	}

	res, err := c.do(&base.Request{
		Method: base.Play,
		URL:    c.baseURL,
		Header: header,
	}, false, *c.effectiveTransport == TransportTCP, false)
	if err != nil {
		return err
	}

	if res.StatusCode != base.StatusOK {
		return liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	c.state = clientStatePlay

	// restart transports stopped by a previous pause
	for _, cm := range c.medias {
		cm.start()
	}

	c.startReader()

	return nil
}

func (c *Client) doPause() error {
	if c.state != clientStatePlay {
		return liberrors.ErrClientInvalidState{
			AllowedList: []fmt.Stringer{clientStatePlay},
			State:       c.state,
		}
	}

	c.stopReader()
	c.state = clientStatePrePlay

	res, err := c.do(&base.Request{
		Method: base.Pause,
		URL:    c.baseURL,
	}, false, *c.effectiveTransport == TransportTCP, false)
	if err != nil {
		return err
	}

	if res.StatusCode != base.StatusOK {
		return liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	return nil
}

func (c *Client) sendKeepalive() error {
	req := &base.Request{
		Method: func() base.Method {
			// the VLC integrated rtsp server requires GET_PARAMETER
			if c.useGetParameter {
				return base.GetParameter
			}
			return base.Options
		}(),
		Header: base.Header{},
	}

	if c.useGetParameter {
		// use the stream base URL, otherwise some cameras do not reply
		req.URL = c.baseURL
	}

	if c.state == clientStatePlay {
		// the reader owns the receive side; send asynchronously and
		// let it route the response back
		if c.session != "" {
			req.Header.Set("Session", base.HeaderValue{c.session})
		}
		if c.sender != nil && req.URL != nil {
			c.sender.AddAuthorization(req)
		}
		c.cseq++
		req.Header.Set("CSeq", base.HeaderValue{strconv.FormatInt(int64(c.cseq), 10)})
		req.Header.Set("User-Agent", base.HeaderValue{c.UserAgent})

		c.pending[c.cseq] = pendingRequest{req: req, keepalive: true}

		c.OnRequest(req)

		c.writeMutex.Lock()
		c.nconn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
		err := c.conn.WriteRequest(req)
		c.writeMutex.Unlock()
		return err
	}

	_, err := c.do(req, true, false, false)
	return err
}

func (c *Client) startReader() {
	v := time.Now().Unix()
	c.tcpLastFrameTime = &v

	c.checkStreamTimer = time.NewTimer(checkStreamPeriod)

	// the read deadline must be disabled: the reader waits for frames
	// that can legitimately arrive at any interval; liveness is
	// enforced by checkStream
	c.nconn.SetReadDeadline(time.Time{})

	c.readerErr = make(chan error)
	go c.runReader()
}

func (c *Client) stopReader() {
	if c.readerErr != nil {
		c.nconn.SetReadDeadline(time.Now())
		<-c.readerErr
		c.readerErr = nil
		c.nconn.SetReadDeadline(time.Time{})
	}

	for _, cm := range c.medias {
		cm.stop()
	}

	c.checkStreamTimer = emptyTimer()
}

func (c *Client) runReader() {
	c.readerErr <- func() error {
		for {
			what, err := c.conn.Read()
			if err != nil {
				return err
			}

			switch what := what.(type) {
			case *base.InterleavedFrame:
				atomic.StoreInt64(c.tcpLastFrameTime, time.Now().Unix())

				channel := what.Channel
				isRTP := true
				if (channel % 2) != 0 {
					channel--
					isRTP = false
				}

				cm, ok := c.tcpMediasByChannel[channel]
				if !ok {
					continue
				}

				if isRTP {
					cm.readRTP(what.Payload)
				} else {
					cm.readRTCP(what.Payload)
				}

			case *base.Response:
				select {
				case c.chResponse <- what:
				case <-c.ctx.Done():
				}

			case *base.Request:
				// requests from the server (like server-side
				// GET_PARAMETER) are ignored
			}
		}
	}()
}

// checkStream verifies that data is still flowing.
func (c *Client) checkStream() error {
	if *c.effectiveTransport == TransportTCP {
		lft := time.Unix(atomic.LoadInt64(c.tcpLastFrameTime), 0)
		if time.Since(lft) >= c.ReadTimeout {
			return liberrors.ErrClientTCPTimeout{}
		}
		return nil
	}

	inTimeout := func() bool {
		for _, cm := range c.medias {
			lft := time.Unix(atomic.LoadInt64(cm.udpRTPListener.lastPacketTime), 0)
			if time.Since(lft) < c.ReadTimeout {
				return false
			}

			lft = time.Unix(atomic.LoadInt64(cm.udpRTCPListener.lastPacketTime), 0)
			if time.Since(lft) < c.ReadTimeout {
				return false
			}
		}
		return true
	}()
	if inTimeout {
		return liberrors.ErrClientUDPTimeout{}
	}

	return nil
}
