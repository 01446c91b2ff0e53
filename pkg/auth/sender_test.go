package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camgrab/rtspclient/pkg/base"
	"github.com/camgrab/rtspclient/pkg/headers"
)

func TestSenderBasic(t *testing.T) {
	se := &Sender{
		WWWAuth: base.HeaderValue{"Basic realm=\"4419b63f5e51\""},
		User:    "myuser",
		Pass:    "mypass",
	}
	err := se.Initialize()
	require.NoError(t, err)

	req := &base.Request{
		Method: base.Options,
		URL:    base.MustParseURL("rtsp://myhost/mypath"),
	}
	se.AddAuthorization(req)

	require.Equal(t, base.HeaderValue{"Basic bXl1c2VyOm15cGFzcw=="}, req.Header.Value("Authorization"))
}

// reference vector of RFC 2617 without qop:
// user=admin, pass=1234, realm=IP Camera(21388),
// nonce=534407f373af1bdff561b7b4da295354, method=DESCRIBE,
// uri=rtsp://cam/axis-media/media.amp
func TestSenderDigest(t *testing.T) {
	se := &Sender{
		WWWAuth: base.HeaderValue{
			"Digest realm=\"IP Camera(21388)\", nonce=\"534407f373af1bdff561b7b4da295354\", stale=\"FALSE\"",
		},
		User: "admin",
		Pass: "1234",
	}
	err := se.Initialize()
	require.NoError(t, err)

	req := &base.Request{
		Method: base.Describe,
		URL:    base.MustParseURL("rtsp://cam/axis-media/media.amp"),
	}
	se.AddAuthorization(req)

	var h headers.Authorization
	err = h.Unmarshal(req.Header.Value("Authorization"))
	require.NoError(t, err)

	require.Equal(t, headers.AuthMethodDigest, h.Method)
	require.Equal(t, "admin", h.Username)
	require.Equal(t, "IP Camera(21388)", h.Realm)
	require.Equal(t, "534407f373af1bdff561b7b4da295354", h.Nonce)
	require.Equal(t, "rtsp://cam/axis-media/media.amp", h.URI)

	ha1 := md5Hex("admin:IP Camera(21388):1234")
	ha2 := md5Hex("DESCRIBE:rtsp://cam/axis-media/media.amp")
	require.Equal(t, md5Hex(ha1+":534407f373af1bdff561b7b4da295354:"+ha2), h.Response)
}

func TestSenderDigestQOP(t *testing.T) {
	se := &Sender{
		WWWAuth: base.HeaderValue{
			"Digest realm=\"R\", nonce=\"N\", qop=\"auth,auth-int\"",
		},
		User: "admin",
		Pass: "1234",
	}
	err := se.Initialize()
	require.NoError(t, err)

	req := &base.Request{
		Method: base.Describe,
		URL:    base.MustParseURL("rtsp://cam/stream"),
	}
	se.AddAuthorization(req)

	var h headers.Authorization
	err = h.Unmarshal(req.Header.Value("Authorization"))
	require.NoError(t, err)

	// the first token of the offered list is used
	require.Equal(t, "auth", h.QOP)
	require.Equal(t, uint32(1), h.NonceCount)
	require.Len(t, h.Cnonce, 8)

	ha1 := md5Hex("admin:R:1234")
	ha2 := md5Hex("DESCRIBE:rtsp://cam/stream")
	require.Equal(t,
		md5Hex(ha1+":N:00000001:"+h.Cnonce+":auth:"+ha2),
		h.Response)

	// the nonce counter increments on reuse, the cnonce stays fixed
	req2 := &base.Request{
		Method: base.Setup,
		URL:    base.MustParseURL("rtsp://cam/stream/trackID=1"),
	}
	se.AddAuthorization(req2)

	var h2 headers.Authorization
	err = h2.Unmarshal(req2.Header.Value("Authorization"))
	require.NoError(t, err)
	require.Equal(t, uint32(2), h2.NonceCount)
	require.Equal(t, h.Cnonce, h2.Cnonce)
}

func TestSenderPrefersDigest(t *testing.T) {
	se := &Sender{
		WWWAuth: base.HeaderValue{
			"Basic realm=\"R\"",
			"Digest realm=\"R\", nonce=\"N\"",
		},
		User: "user",
		Pass: "pass",
	}
	err := se.Initialize()
	require.NoError(t, err)

	req := &base.Request{
		Method: base.Options,
		URL:    base.MustParseURL("rtsp://host/path"),
	}
	se.AddAuthorization(req)

	var h headers.Authorization
	err = h.Unmarshal(req.Header.Value("Authorization"))
	require.NoError(t, err)
	require.Equal(t, headers.AuthMethodDigest, h.Method)
}

func TestSenderNoUsableMethod(t *testing.T) {
	se := &Sender{
		WWWAuth: base.HeaderValue{"Unknown something"},
		User:    "user",
		Pass:    "pass",
	}
	require.Error(t, se.Initialize())
}
