package base

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
)

func headerKeyNormalize(in string) string {
	switch strings.ToLower(in) {
	case "rtp-info":
		return "RTP-Info"

	case "www-authenticate":
		return "WWW-Authenticate"

	case "cseq":
		return "CSeq"
	}
	return http.CanonicalHeaderKey(in)
}

// HeaderValue is an header value.
type HeaderValue []string

// Header is a RTSP header bag, present in both Requests and Responses.
// Lookup is case-insensitive through key normalization; iteration
// preserves the order in which keys first appeared.
type Header struct {
	keys   []string
	values map[string]HeaderValue
}

// NewHeader allocates a Header from an ordered list of key/value pairs.
func NewHeader(pairs ...string) Header {
	var h Header
	for i := 0; (i + 1) < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

// Add appends values to the ones already stored under a key.
// The key keeps the position of its first appearance.
func (h *Header) Add(key string, vals ...string) {
	key = headerKeyNormalize(key)
	if h.values == nil {
		h.values = make(map[string]HeaderValue)
	}
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = append(h.values[key], vals...)
}

// Set replaces the values stored under a key.
// The key keeps the position of its first appearance.
func (h *Header) Set(key string, vals HeaderValue) {
	key = headerKeyNormalize(key)
	if h.values == nil {
		h.values = make(map[string]HeaderValue)
	}
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = vals
}

// Get returns the values stored under a key and whether the key exists.
func (h Header) Get(key string) (HeaderValue, bool) {
	v, ok := h.values[headerKeyNormalize(key)]
	return v, ok
}

// Value returns the values stored under a key, or nil.
func (h Header) Value(key string) HeaderValue {
	return h.values[headerKeyNormalize(key)]
}

// Has reports whether a key exists.
func (h Header) Has(key string) bool {
	_, ok := h.values[headerKeyNormalize(key)]
	return ok
}

// Del removes a key.
func (h *Header) Del(key string) {
	key = headerKeyNormalize(key)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in the order they first appeared.
func (h Header) Keys() []string {
	return h.keys
}

// Len returns the number of keys.
func (h Header) Len() int {
	return len(h.keys)
}

// Clone returns a deep copy of the header.
func (h Header) Clone() Header {
	ret := Header{}
	for _, key := range h.keys {
		ret.Add(key, h.values[key]...)
	}
	return ret
}

func (h *Header) unmarshal(rb *bufio.Reader) error {
	*h = Header{}

	for {
		byts, err := rb.Peek(1)
		if err != nil {
			return err
		}

		if byts[0] == '\r' || byts[0] == '\n' {
			// discard CRLF or bare LF
			rb.ReadByte() //nolint:errcheck
			if byts[0] == '\r' {
				err := readByteEqual(rb, '\n')
				if err != nil {
					return err
				}
			}
			break
		}

		if h.Len() >= headerMaxEntryCount {
			return fmt.Errorf("headers count exceeds %d", headerMaxEntryCount)
		}

		line, err := readLine(rb, headerMaxKeyLength+headerMaxValueLength)
		if err != nil {
			return err
		}

		i := strings.IndexByte(line, ':')
		if i < 0 {
			return fmt.Errorf("value is missing")
		}

		// https://tools.ietf.org/html/rfc2616
		// The field value MAY be preceded by any amount of spaces
		val := strings.TrimLeft(line[i+1:], " ")

		h.Add(line[:i], val)
	}

	return nil
}

func (h Header) marshalSize() int {
	n := 0
	for _, key := range h.keys {
		for _, val := range h.values[key] {
			n += len(key + ": " + val + "\r\n")
		}
	}
	n += 2
	return n
}

func (h Header) marshalTo(buf []byte) int {
	pos := 0
	for _, key := range h.keys {
		for _, val := range h.values[key] {
			pos += copy(buf[pos:], key+": "+val+"\r\n")
		}
	}
	pos += copy(buf[pos:], "\r\n")
	return pos
}
