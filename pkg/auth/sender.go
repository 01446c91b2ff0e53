// Package auth contains utilities to perform authentication.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/camgrab/rtspclient/pkg/base"
	"github.com/camgrab/rtspclient/pkg/headers"
)

func md5Hex(in string) string {
	h := md5.Sum([]byte(in))
	return hex.EncodeToString(h[:])
}

func randomCnonce() (string, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Sender allows to send credentials.
// It requires a WWW-Authenticate header (provided by the server)
// and a set of credentials.
type Sender struct {
	WWWAuth base.HeaderValue
	User    string
	Pass    string

	authHeader *headers.Authenticate

	// quality of protection picked from the server's offer
	qop string

	// client nonce, fixed for the lifetime of the challenge
	cnonce string

	// nonce counter, restarts whenever a fresh challenge is received
	nonceCount uint32
}

// Initialize initializes a Sender.
func (se *Sender) Initialize() error {
	for _, v := range se.WWWAuth {
		var auth headers.Authenticate
		err := auth.Unmarshal(base.HeaderValue{v})
		if err != nil {
			continue // ignore unrecognized headers
		}

		if auth.Method == headers.AuthMethodDigest &&
			auth.Algorithm != nil && *auth.Algorithm != "MD5" {
			continue // only MD5 is supported
		}

		// prefer Digest over Basic
		if se.authHeader == nil || se.authHeader.Method == headers.AuthMethodBasic {
			se.authHeader = &auth
		}
	}

	if se.authHeader == nil {
		return fmt.Errorf("no authentication methods available")
	}

	if se.authHeader.Method == headers.AuthMethodDigest {
		if len(se.authHeader.QOP) > 0 {
			// take the first token of the offered list
			se.qop = se.authHeader.QOP[0]
			if se.qop != "auth" && se.qop != "auth-int" {
				return fmt.Errorf("unsupported qop (%s)", se.qop)
			}

			var err error
			se.cnonce, err = randomCnonce()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// AddAuthorization adds the Authorization header to a Request.
func (se *Sender) AddAuthorization(req *base.Request) {
	urStr := req.URL.CloneWithoutCredentials().String()

	h := headers.Authorization{
		Method:   se.authHeader.Method,
		Username: se.User,
	}

	if se.authHeader.Method == headers.AuthMethodBasic {
		h.BasicPass = se.Pass
	} else { // digest
		h.Realm = se.authHeader.Realm
		h.Nonce = se.authHeader.Nonce
		h.URI = urStr
		h.Opaque = se.authHeader.Opaque
		h.Algorithm = se.authHeader.Algorithm

		ha1 := md5Hex(se.User + ":" + se.authHeader.Realm + ":" + se.Pass)

		ha2 := md5Hex(string(req.Method) + ":" + urStr)
		if se.qop == "auth-int" {
			ha2 = md5Hex(string(req.Method) + ":" + urStr + ":" + md5Hex(string(req.Body)))
		}

		if se.qop != "" {
			se.nonceCount++
			nc := fmt.Sprintf("%08x", se.nonceCount)
			h.Response = md5Hex(ha1 + ":" + se.authHeader.Nonce + ":" + nc +
				":" + se.cnonce + ":" + se.qop + ":" + ha2)
			h.QOP = se.qop
			h.Cnonce = se.cnonce
			h.NonceCount = se.nonceCount
		} else {
			h.Response = md5Hex(ha1 + ":" + se.authHeader.Nonce + ":" + ha2)
		}
	}

	req.Header.Set("Authorization", h.Marshal())
}
