// Package headers contains various RTSP headers.
package headers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/camgrab/rtspclient/pkg/base"
)

// AuthMethod is an authentication method.
type AuthMethod int

// authentication methods.
const (
	// AuthMethodBasic is the Basic authentication method
	AuthMethodBasic AuthMethod = iota

	// AuthMethodDigest is the Digest authentication method
	AuthMethodDigest
)

// consumes the next value of a comma-separated list,
// honoring double quotes.
func consumeValue(v0 string) (string, string, error) {
	if v0 == "" {
		return "", "", nil
	}

	if v0[0] == '"' {
		i := 1
		for {
			if i >= len(v0) {
				return "", "", fmt.Errorf("apices not closed (%v)", v0)
			}

			if v0[i] == '"' {
				return v0[1:i], v0[i+1:], nil
			}

			i++
		}
	}

	i := 0
	for {
		if i >= len(v0) || v0[i] == ',' {
			return v0[:i], v0[i:], nil
		}

		i++
	}
}

func authParsePairs(v0 string, cb func(key string, val string)) error {
	for len(v0) > 0 {
		i := strings.IndexByte(v0, '=')
		if i < 0 {
			return fmt.Errorf("unable to find key (%s)", v0)
		}
		var key string
		key, v0 = strings.TrimLeft(v0[:i], " "), v0[i+1:]

		var val string
		var err error
		val, v0, err = consumeValue(v0)
		if err != nil {
			return err
		}

		cb(key, val)

		// skip comma
		if len(v0) > 0 && v0[0] == ',' {
			v0 = v0[1:]
		}

		// skip spaces
		v0 = strings.TrimLeft(v0, " ")
	}

	return nil
}

// Authenticate is a WWW-Authenticate header.
type Authenticate struct {
	// authentication method
	Method AuthMethod

	// realm
	Realm string

	// nonce (Digest only)
	Nonce string

	// (optional) opaque
	Opaque *string

	// (optional) stale
	Stale *string

	// (optional) algorithm
	Algorithm *string

	// (optional) quality of protection values offered by the server
	QOP []string
}

// Unmarshal decodes a WWW-Authenticate header.
func (h *Authenticate) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	v0 := v[0]

	i := strings.IndexByte(v0, ' ')
	if i < 0 {
		return fmt.Errorf("unable to find method (%s)", v0)
	}

	switch v0[:i] {
	case "Basic":
		h.Method = AuthMethodBasic

	case "Digest":
		h.Method = AuthMethodDigest

	default:
		return fmt.Errorf("invalid method (%s)", v0[:i])
	}
	v0 = v0[i+1:]

	realmReceived := false
	nonceReceived := false

	err := authParsePairs(v0, func(key string, val string) {
		switch key {
		case "realm":
			h.Realm = val
			realmReceived = true

		case "nonce":
			h.Nonce = val
			nonceReceived = true

		case "opaque":
			v := val
			h.Opaque = &v

		case "stale":
			v := val
			h.Stale = &v

		case "algorithm":
			v := val
			h.Algorithm = &v

		case "qop":
			h.QOP = strings.Split(val, ",")
			for i, q := range h.QOP {
				h.QOP[i] = strings.TrimSpace(q)
			}
		}
		// ignore non-standard keys
	})
	if err != nil {
		return err
	}

	if !realmReceived {
		return fmt.Errorf("realm is missing")
	}

	if h.Method == AuthMethodDigest && !nonceReceived {
		return fmt.Errorf("nonce is missing")
	}

	return nil
}

// Marshal encodes a WWW-Authenticate header.
func (h Authenticate) Marshal() base.HeaderValue {
	if h.Method == AuthMethodBasic {
		return base.HeaderValue{"Basic realm=\"" + h.Realm + "\""}
	}

	ret := "Digest realm=\"" + h.Realm + "\", nonce=\"" + h.Nonce + "\""

	if h.Opaque != nil {
		ret += ", opaque=\"" + *h.Opaque + "\""
	}

	if h.Stale != nil {
		ret += ", stale=\"" + *h.Stale + "\""
	}

	if h.Algorithm != nil {
		ret += ", algorithm=\"" + *h.Algorithm + "\""
	}

	if h.QOP != nil {
		ret += ", qop=\"" + strings.Join(h.QOP, ",") + "\""
	}

	return base.HeaderValue{ret}
}

// Authorization is an Authorization header.
type Authorization struct {
	// authentication method
	Method AuthMethod

	// username
	Username string

	// basic password (Basic only)
	BasicPass string

	// realm (Digest only)
	Realm string

	// nonce (Digest only)
	Nonce string

	// URI (Digest only)
	URI string

	// response (Digest only)
	Response string

	// (optional) opaque
	Opaque *string

	// (optional) algorithm
	Algorithm *string

	// (optional) quality of protection
	QOP string

	// (optional) client nonce, present when QOP is set
	Cnonce string

	// (optional) nonce count, present when QOP is set
	NonceCount uint32
}

// Unmarshal decodes an Authorization header.
func (h *Authorization) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	v0 := v[0]

	i := strings.IndexByte(v0, ' ')
	if i < 0 {
		return fmt.Errorf("unable to find method (%s)", v0)
	}

	switch v0[:i] {
	case "Basic":
		h.Method = AuthMethodBasic

	case "Digest":
		h.Method = AuthMethodDigest

	default:
		return fmt.Errorf("invalid method (%s)", v0[:i])
	}
	v0 = v0[i+1:]

	if h.Method == AuthMethodBasic {
		tmp, err := base64Decode(v0)
		if err != nil {
			return fmt.Errorf("invalid value (%s)", v0)
		}

		tmp2 := strings.SplitN(string(tmp), ":", 2)
		if len(tmp2) != 2 {
			return fmt.Errorf("invalid value (%s)", v0)
		}

		h.Username, h.BasicPass = tmp2[0], tmp2[1]
		return nil
	}

	return authParsePairs(v0, func(key string, val string) {
		switch key {
		case "username":
			h.Username = val

		case "realm":
			h.Realm = val

		case "nonce":
			h.Nonce = val

		case "uri":
			h.URI = val

		case "response":
			h.Response = val

		case "opaque":
			v := val
			h.Opaque = &v

		case "algorithm":
			v := val
			h.Algorithm = &v

		case "qop":
			h.QOP = val

		case "cnonce":
			h.Cnonce = val

		case "nc":
			tmp, err := strconv.ParseUint(val, 16, 32)
			if err == nil {
				h.NonceCount = uint32(tmp)
			}
		}
		// ignore non-standard keys
	})
}

// Marshal encodes an Authorization header.
func (h Authorization) Marshal() base.HeaderValue {
	if h.Method == AuthMethodBasic {
		return base.HeaderValue{"Basic " + base64Encode(h.Username+":"+h.BasicPass)}
	}

	ret := "Digest username=\"" + h.Username + "\", realm=\"" + h.Realm +
		"\", nonce=\"" + h.Nonce + "\", uri=\"" + h.URI + "\", response=\"" + h.Response + "\""

	if h.Opaque != nil {
		ret += ", opaque=\"" + *h.Opaque + "\""
	}

	if h.Algorithm != nil {
		ret += ", algorithm=\"" + *h.Algorithm + "\""
	}

	if h.QOP != "" {
		ret += ", qop=" + h.QOP +
			", nc=" + fmt.Sprintf("%08x", h.NonceCount) +
			", cnonce=\"" + h.Cnonce + "\""
	}

	return base.HeaderValue{ret}
}
