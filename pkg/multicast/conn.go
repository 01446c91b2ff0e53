// Package multicast contains multicast connections.
package multicast

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
)

// same TTL as GStreamer's rtspsrc
const multicastTTL = 16

// Conn is a multicast connection.
type Conn interface {
	net.PacketConn
	SetReadBuffer(int) error
}

type conn struct {
	addr *net.UDPAddr
	pc   *net.UDPConn
	pcIP *ipv4.PacketConn
}

// NewConn allocates a connection that joins a multicast group
// on every suitable interface.
func NewConn(
	address string,
	listenPacket func(network, address string) (net.PacketConn, error),
) (Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, err
	}

	tmp, err := listenPacket("udp4", "224.0.0.0:"+strconv.FormatInt(int64(addr.Port), 10))
	if err != nil {
		return nil, err
	}
	pc := tmp.(*net.UDPConn)

	pcIP := ipv4.NewPacketConn(pc)

	err = pcIP.SetMulticastTTL(multicastTTL)
	if err != nil {
		pc.Close() //nolint:errcheck
		return nil, err
	}

	intfs, err := net.Interfaces()
	if err != nil {
		pc.Close() //nolint:errcheck
		return nil, err
	}

	joined := false
	for _, intf := range intfs {
		if (intf.Flags & net.FlagMulticast) != 0 {
			err := pcIP.JoinGroup(&intf, &net.UDPAddr{IP: addr.IP})
			if err == nil {
				joined = true
			}
		}
	}

	if !joined {
		pc.Close() //nolint:errcheck
		return nil, fmt.Errorf("unable to join the multicast group on any interface")
	}

	return &conn{
		addr: addr,
		pc:   pc,
		pcIP: pcIP,
	}, nil
}

// Close implements Conn.
func (c *conn) Close() error {
	return c.pc.Close()
}

// SetReadBuffer implements Conn.
func (c *conn) SetReadBuffer(bytes int) error {
	return c.pc.SetReadBuffer(bytes)
}

// LocalAddr implements Conn.
func (c *conn) LocalAddr() net.Addr {
	return c.pc.LocalAddr()
}

// SetDeadline implements Conn.
func (c *conn) SetDeadline(t time.Time) error {
	return c.pc.SetDeadline(t)
}

// SetReadDeadline implements Conn.
func (c *conn) SetReadDeadline(t time.Time) error {
	return c.pc.SetReadDeadline(t)
}

// SetWriteDeadline implements Conn.
func (c *conn) SetWriteDeadline(t time.Time) error {
	return c.pc.SetWriteDeadline(t)
}

// WriteTo implements Conn.
func (c *conn) WriteTo(b []byte, addr net.Addr) (int, error) {
	return c.pc.WriteTo(b, addr)
}

// ReadFrom implements Conn.
func (c *conn) ReadFrom(b []byte) (int, net.Addr, error) {
	return c.pc.ReadFrom(b)
}
