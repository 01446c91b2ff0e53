package headers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camgrab/rtspclient/pkg/base"
)

func TestSessionUnmarshal(t *testing.T) {
	var h Session
	err := h.Unmarshal(base.HeaderValue{"A3eqwsafq3rFASqew"})
	require.NoError(t, err)
	require.Equal(t, "A3eqwsafq3rFASqew", h.Session)
	require.Nil(t, h.Timeout)

	h = Session{}
	err = h.Unmarshal(base.HeaderValue{"A3eqwsafq3rFASqew;timeout=47"})
	require.NoError(t, err)
	require.Equal(t, "A3eqwsafq3rFASqew", h.Session)
	require.NotNil(t, h.Timeout)
	require.Equal(t, uint(47), *h.Timeout)
}

func TestSessionUnmarshalErrors(t *testing.T) {
	var h Session
	require.Error(t, h.Unmarshal(base.HeaderValue{}))
	require.Error(t, h.Unmarshal(base.HeaderValue{"a", "b"}))
	require.Error(t, h.Unmarshal(base.HeaderValue{"sid;timeout=abc"}))
}

func TestSessionMarshal(t *testing.T) {
	timeout := uint(60)
	h := Session{
		Session: "sid123",
		Timeout: &timeout,
	}
	require.Equal(t, base.HeaderValue{"sid123;timeout=60"}, h.Marshal())
}
