package rtspclient

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	httpTunnelContentType = "application/x-rtsp-tunnelled"
	httpTunnelCookieName  = "x-sessioncookie"
)

// clientHTTPTunnel implements a bidirectional RTSP-over-HTTP tunnel.
// It follows Apple's tunneling protocol, which uses two TCP connections:
// - one for reading (HTTP GET, base64-encoded server to client stream)
// - one for writing (HTTP POST, base64-encoded client to server stream)
// Both carry the same session cookie.
type clientHTTPTunnel struct {
	dialContext  func(ctx context.Context, network, address string) (net.Conn, error)
	host         string
	path         string
	userAgent    string
	readTimeout  time.Duration
	writeTimeout time.Duration

	sessionCookie string
	readConn      net.Conn
	readBuf       *bufio.Reader
	writeConn     net.Conn
	writeMutex    sync.Mutex

	// leftover base64 characters of an incomplete 4-byte block
	partial []byte
}

func (t *clientHTTPTunnel) connect(ctx context.Context) error {
	t.sessionCookie = uuid.New().String()

	err := t.connectRead(ctx)
	if err != nil {
		return err
	}

	err = t.connectWrite(ctx)
	if err != nil {
		t.readConn.Close()
		return err
	}

	return nil
}

func (t *clientHTTPTunnel) requestHeader(method string, chunked bool) string {
	ret := method + " " + t.path + " HTTP/1.1\r\n" +
		"Host: " + t.host + "\r\n" +
		"User-Agent: " + t.userAgent + "\r\n" +
		"Content-Type: " + httpTunnelContentType + "\r\n" +
		httpTunnelCookieName + ": " + t.sessionCookie + "\r\n" +
		"Connection: Keep-Alive\r\n"

	if chunked {
		ret += "Transfer-Encoding: chunked\r\n"
	}

	return ret + "\r\n"
}

func (t *clientHTTPTunnel) connectRead(ctx context.Context) error {
	nconn, err := t.dialContext(ctx, "tcp", t.host)
	if err != nil {
		return err
	}

	nconn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	_, err = nconn.Write([]byte(t.requestHeader("GET", false)))
	if err != nil {
		nconn.Close()
		return err
	}

	br := bufio.NewReader(nconn)

	nconn.SetReadDeadline(time.Now().Add(t.readTimeout))
	res, err := http.ReadResponse(br, nil)
	if err != nil {
		nconn.Close()
		return err
	}

	if res.StatusCode != http.StatusOK {
		nconn.Close()
		return fmt.Errorf("tunnel GET refused with code %d", res.StatusCode)
	}

	t.readConn = nconn
	t.readBuf = br
	return nil
}

func (t *clientHTTPTunnel) connectWrite(ctx context.Context) error {
	nconn, err := t.dialContext(ctx, "tcp", t.host)
	if err != nil {
		return err
	}

	nconn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	_, err = nconn.Write([]byte(t.requestHeader("POST", true)))
	if err != nil {
		nconn.Close()
		return err
	}

	t.writeConn = nconn
	return nil
}

// Read reads from the GET response body, decoding base64 in 4-byte blocks.
func (t *clientHTTPTunnel) Read(b []byte) (int, error) {
	for {
		encLen := base64.StdEncoding.EncodedLen(len(b))
		enc := make([]byte, encLen)

		n := copy(enc, t.partial)
		t.partial = t.partial[:0]

		n2, err := t.readBuf.Read(enc[n:])
		if err != nil {
			return 0, err
		}
		n += n2

		// hold back characters of an incomplete block
		rem := n % 4
		if rem != 0 {
			t.partial = append(t.partial, enc[n-rem:n]...)
			n -= rem
		}

		if n == 0 {
			continue
		}

		return base64.StdEncoding.Decode(b, enc[:n])
	}
}

// Write writes to the POST request body as base64-encoded HTTP chunks.
func (t *clientHTTPTunnel) Write(b []byte) (int, error) {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	enc := base64.StdEncoding.EncodeToString(b)

	chunk := fmt.Sprintf("%x\r\n", len(enc)) + enc + "\r\n"

	t.writeConn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	_, err := t.writeConn.Write([]byte(chunk))
	if err != nil {
		return 0, err
	}

	return len(b), nil
}

// Close closes both tunnel connections.
func (t *clientHTTPTunnel) Close() error {
	if t.writeConn != nil {
		// final chunk ends the POST request
		t.writeConn.Write([]byte("0\r\n\r\n")) //nolint:errcheck
		t.writeConn.Close()
	}
	if t.readConn != nil {
		t.readConn.Close()
	}
	return nil
}

// LocalAddr implements net.Conn.
func (t *clientHTTPTunnel) LocalAddr() net.Addr {
	return t.readConn.LocalAddr()
}

// RemoteAddr implements net.Conn.
func (t *clientHTTPTunnel) RemoteAddr() net.Addr {
	return t.readConn.RemoteAddr()
}

// SetDeadline implements net.Conn.
func (t *clientHTTPTunnel) SetDeadline(tm time.Time) error {
	t.readConn.SetReadDeadline(tm)           //nolint:errcheck
	return t.writeConn.SetWriteDeadline(tm)
}

// SetReadDeadline implements net.Conn.
func (t *clientHTTPTunnel) SetReadDeadline(tm time.Time) error {
	return t.readConn.SetReadDeadline(tm)
}

// SetWriteDeadline implements net.Conn.
func (t *clientHTTPTunnel) SetWriteDeadline(tm time.Time) error {
	return t.writeConn.SetWriteDeadline(tm)
}
