package base

import (
	"fmt"
	"net/url"
	"strings"
)

// URL is a RTSP URL.
// This is basically an HTTP URL with some additional functions to handle
// control attributes.
type URL url.URL

// ParseURL parses a RTSP URL.
func ParseURL(s string) (*URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}

	if u.Scheme != "rtsp" && u.Scheme != "rtsps" && u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme '%s'", u.Scheme)
	}

	return (*URL)(u), nil
}

// MustParseURL is like ParseURL but panics in case of errors.
func MustParseURL(s string) *URL {
	u, err := ParseURL(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String implements fmt.Stringer.
func (u *URL) String() string {
	return (*url.URL)(u).String()
}

// Hostname returns the host without the port.
func (u *URL) Hostname() string {
	return (*url.URL)(u).Hostname()
}

// Clone clones a URL.
func (u *URL) Clone() *URL {
	return (*URL)(&url.URL{
		Scheme:     u.Scheme,
		Opaque:     u.Opaque,
		User:       u.User,
		Host:       u.Host,
		Path:       u.Path,
		RawPath:    u.RawPath,
		ForceQuery: u.ForceQuery,
		RawQuery:   u.RawQuery,
	})
}

// CloneWithoutCredentials clones a URL without its credentials.
func (u *URL) CloneWithoutCredentials() *URL {
	ret := u.Clone()
	ret.User = nil
	return ret
}

// AddControlAttribute appends a control attribute to a RTSP URL,
// guaranteeing a slash between path and attribute.
func (u *URL) AddControlAttribute(controlPath string) {
	if controlPath[0] != '?' && controlPath[0] != '/' {
		controlPath = "/" + controlPath
	}

	// insert the control attribute at the end of the URL.
	// if there's a query, insert it after the query,
	// otherwise insert it after the path.
	nu, _ := ParseURL(u.String() + controlPath)
	if nu != nil {
		*u = *nu
	}
}

// RTSPPathAndQuery returns the path and query of a RTSP URL.
func (u *URL) RTSPPathAndQuery() (string, bool) {
	var pathAndQuery string
	if u.RawPath != "" {
		pathAndQuery = u.RawPath
	} else {
		pathAndQuery = u.Path
	}
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}

	if !strings.HasPrefix(pathAndQuery, "/") {
		return "", false
	}

	return pathAndQuery[1:], true
}
