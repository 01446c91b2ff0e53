package headers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camgrab/rtspclient/pkg/base"
)

func strPtr(v string) *string {
	return &v
}

func TestAuthenticateUnmarshal(t *testing.T) {
	for _, ca := range []struct {
		name string
		hv   base.HeaderValue
		h    Authenticate
	}{
		{
			"basic",
			base.HeaderValue{"Basic realm=\"4419b63f5e51\""},
			Authenticate{
				Method: AuthMethodBasic,
				Realm:  "4419b63f5e51",
			},
		},
		{
			"digest",
			base.HeaderValue{"Digest realm=\"4419b63f5e51\", nonce=\"8b84a3b789283a8bea8da7fa7d41f08b\", stale=\"FALSE\""},
			Authenticate{
				Method: AuthMethodDigest,
				Realm:  "4419b63f5e51",
				Nonce:  "8b84a3b789283a8bea8da7fa7d41f08b",
				Stale:  strPtr("FALSE"),
			},
		},
		{
			"digest with qop list",
			base.HeaderValue{"Digest realm=\"IP Camera(21388)\", nonce=\"534407f373af1bdff561b7b4da295354\", " +
				"opaque=\"5ccc069c403ebaf9f0171e9517f40e41\", qop=\"auth,auth-int\""},
			Authenticate{
				Method: AuthMethodDigest,
				Realm:  "IP Camera(21388)",
				Nonce:  "534407f373af1bdff561b7b4da295354",
				Opaque: strPtr("5ccc069c403ebaf9f0171e9517f40e41"),
				QOP:    []string{"auth", "auth-int"},
			},
		},
		{
			"digest with spaces in qop list",
			base.HeaderValue{"Digest realm=\"R\", nonce=\"N\", qop=\"auth, auth-int\""},
			Authenticate{
				Method: AuthMethodDigest,
				Realm:  "R",
				Nonce:  "N",
				QOP:    []string{"auth", "auth-int"},
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var h Authenticate
			err := h.Unmarshal(ca.hv)
			require.NoError(t, err)
			require.Equal(t, ca.h, h)
		})
	}
}

func TestAuthenticateUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		hv   base.HeaderValue
	}{
		{"empty", base.HeaderValue{}},
		{"multiple", base.HeaderValue{"a", "b"}},
		{"no method", base.HeaderValue{"Basic"}},
		{"invalid method", base.HeaderValue{"Token realm=\"x\""}},
		{"digest without nonce", base.HeaderValue{"Digest realm=\"x\""}},
		{"unclosed quotes", base.HeaderValue{"Digest realm=\"x"}},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var h Authenticate
			err := h.Unmarshal(ca.hv)
			require.Error(t, err)
		})
	}
}

func TestAuthorizationRoundTrip(t *testing.T) {
	for _, ca := range []struct {
		name string
		h    Authorization
	}{
		{
			"basic",
			Authorization{
				Method:    AuthMethodBasic,
				Username:  "user",
				BasicPass: "pass",
			},
		},
		{
			"digest",
			Authorization{
				Method:   AuthMethodDigest,
				Username: "admin",
				Realm:    "IP Camera(21388)",
				Nonce:    "534407f373af1bdff561b7b4da295354",
				URI:      "rtsp://cam/axis-media/media.amp",
				Response: "00000000000000000000000000000000",
			},
		},
		{
			"digest with qop",
			Authorization{
				Method:     AuthMethodDigest,
				Username:   "admin",
				Realm:      "R",
				Nonce:      "N",
				URI:        "rtsp://cam/stream",
				Response:   "00000000000000000000000000000000",
				QOP:        "auth",
				Cnonce:     "0a4f113b",
				NonceCount: 1,
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var h Authorization
			err := h.Unmarshal(ca.h.Marshal())
			require.NoError(t, err)
			require.Equal(t, ca.h, h)
		})
	}
}
