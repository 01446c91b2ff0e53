package rtspclient

import (
	"crypto/rand"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/camgrab/rtspclient/pkg/liberrors"
	"github.com/camgrab/rtspclient/pkg/multicast"
)

const (
	udpMinPort = 10000
	udpMaxPort = 65535

	// candidate pairs tried before giving up
	udpMaxBindAttempts = 16

	udpKernelReadBufferSize = 0x80000
)

func randUint32() uint32 {
	var b [4]byte
	rand.Read(b[:]) //nolint:errcheck
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

type udpConn interface {
	net.PacketConn
	SetReadBuffer(int) error
}

type clientUDPListener struct {
	c  *Client
	pc udpConn

	readFunc  func([]byte)
	readIP    net.IP
	readPort  int
	writeAddr *net.UDPAddr

	running        bool
	lastPacketTime *int64
	done           chan struct{}
}

// allocates an even/odd port pair, data port first (RFC 3550 convention).
func newClientUDPListenerPair(c *Client) (*clientUDPListener, *clientUDPListener, error) {
	for i := 0; i < udpMaxBindAttempts; i++ {
		rtpPort := udpMinPort + int(randUint32()%((udpMaxPort-udpMinPort)/2))*2

		rtpListener, err := newClientUDPListener(c, false,
			":"+strconv.FormatInt(int64(rtpPort), 10))
		if err != nil {
			continue
		}

		rtcpListener, err := newClientUDPListener(c, false,
			":"+strconv.FormatInt(int64(rtpPort+1), 10))
		if err != nil {
			rtpListener.close()
			continue
		}

		return rtpListener, rtcpListener, nil
	}

	return nil, nil, liberrors.ErrClientNoFreePortPair{}
}

func newClientUDPListener(c *Client, multicastEnable bool, address string) (*clientUDPListener, error) {
	var pc udpConn
	if multicastEnable {
		tmp, err := multicast.NewConn(address, c.ListenPacket)
		if err != nil {
			return nil, err
		}
		pc = tmp
	} else {
		tmp, err := c.ListenPacket("udp", address)
		if err != nil {
			return nil, err
		}
		pc = tmp.(*net.UDPConn)
	}

	err := pc.SetReadBuffer(udpKernelReadBufferSize)
	if err != nil {
		pc.Close() //nolint:errcheck
		return nil, err
	}

	return &clientUDPListener{
		c:  c,
		pc: pc,
		lastPacketTime: func() *int64 {
			v := int64(0)
			return &v
		}(),
	}, nil
}

func (u *clientUDPListener) close() {
	if u.running {
		u.stop()
	}
	u.pc.Close()
}

func (u *clientUDPListener) port() int {
	return u.pc.LocalAddr().(*net.UDPAddr).Port
}

func (u *clientUDPListener) start() {
	u.running = true
	atomic.StoreInt64(u.lastPacketTime, time.Now().Unix())
	u.pc.SetReadDeadline(time.Time{})
	u.done = make(chan struct{})
	go u.run()
}

func (u *clientUDPListener) stop() {
	if u.running {
		u.pc.SetReadDeadline(time.Now())
		<-u.done
		u.running = false
	}
}

func (u *clientUDPListener) run() {
	defer close(u.done)

	buf := make([]byte, udpMaxPayloadSize+1)

	for {
		n, addr, err := u.pc.ReadFrom(buf)
		if err != nil {
			return
		}

		uaddr := addr.(*net.UDPAddr)

		if u.readIP != nil && !u.readIP.Equal(uaddr.IP) {
			continue
		}

		// in case of anyPortEnable, store the port of the first packet we receive.
		// this reduces security issues
		if u.c.AnyPortEnable && u.readPort == 0 {
			u.readPort = uaddr.Port
		} else if u.readPort != 0 && u.readPort != uaddr.Port {
			continue
		}

		atomic.StoreInt64(u.lastPacketTime, time.Now().Unix())

		u.readFunc(buf[:n])
	}
}

func (u *clientUDPListener) write(payload []byte) error {
	// writes are suppressed until the server endpoint is known
	if u.writeAddr == nil {
		return nil
	}

	// no mutex is needed here since Write() has an internal lock.
	// https://github.com/golang/go/issues/27203#issuecomment-534386117
	u.pc.SetWriteDeadline(time.Now().Add(u.c.WriteTimeout))
	_, err := u.pc.WriteTo(payload, u.writeAddr)
	return err
}
