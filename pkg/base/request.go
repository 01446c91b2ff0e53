package base

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Method is the method of a RTSP request.
type Method string

// methods.
const (
	Announce     Method = "ANNOUNCE"
	Describe     Method = "DESCRIBE"
	GetParameter Method = "GET_PARAMETER"
	Options      Method = "OPTIONS"
	Pause        Method = "PAUSE"
	Play         Method = "PLAY"
	Record       Method = "RECORD"
	Redirect     Method = "REDIRECT"
	Setup        Method = "SETUP"
	SetParameter Method = "SET_PARAMETER"
	Teardown     Method = "TEARDOWN"
)

// Request is a RTSP request.
type Request struct {
	// request method
	Method Method

	// request url. nil when the request-URI is the '*' sentinel.
	URL *URL

	// map of header values
	Header Header

	// optional body
	Body []byte
}

// Unmarshal reads a request.
func (req *Request) Unmarshal(rb *bufio.Reader) error {
	line, err := readLine(rb, maxMethodLength+maxURLLength+maxProtocolLength)
	if err != nil {
		return err
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return fmt.Errorf("invalid request line (%v)", line)
	}

	req.Method = Method(parts[0])
	if req.Method == "" {
		return fmt.Errorf("empty method")
	}

	if parts[1] == "*" {
		req.URL = nil
	} else {
		ur, err := ParseURL(parts[1])
		if err != nil {
			return fmt.Errorf("invalid URL (%v)", parts[1])
		}
		req.URL = ur
	}

	if parts[2] != rtspProtocol10 {
		return fmt.Errorf("expected '%s', got '%s'", rtspProtocol10, parts[2])
	}

	err = req.Header.unmarshal(rb)
	if err != nil {
		return err
	}

	return (*body)(&req.Body).unmarshal(req.Header, rb)
}

func (req Request) urlString() string {
	if req.URL == nil {
		return "*"
	}
	return req.URL.CloneWithoutCredentials().String()
}

// MarshalSize returns the size of a Request.
func (req *Request) MarshalSize() int {
	n := len(string(req.Method) + " " + req.urlString() + " " + rtspProtocol10 + "\r\n")

	if len(req.Body) != 0 {
		req.Header.Set("Content-Length", HeaderValue{strconv.FormatInt(int64(len(req.Body)), 10)})
	}

	n += req.Header.marshalSize()
	n += body(req.Body).marshalSize()

	return n
}

// MarshalTo writes a Request.
func (req *Request) MarshalTo(buf []byte) (int, error) {
	pos := 0

	pos += copy(buf[pos:], string(req.Method)+" "+req.urlString()+" "+rtspProtocol10+"\r\n")

	if len(req.Body) != 0 {
		req.Header.Set("Content-Length", HeaderValue{strconv.FormatInt(int64(len(req.Body)), 10)})
	}

	pos += req.Header.marshalTo(buf[pos:])
	pos += body(req.Body).marshalTo(buf[pos:])

	return pos, nil
}

// Marshal writes a Request.
func (req *Request) Marshal() ([]byte, error) {
	buf := make([]byte, req.MarshalSize())
	_, err := req.MarshalTo(buf)
	return buf, err
}

// String implements fmt.Stringer.
func (req Request) String() string {
	buf, _ := req.Marshal()
	return string(buf)
}

// Clone returns a copy of the request, suitable for resending
// with different headers.
func (req *Request) Clone() *Request {
	return &Request{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
		Body:   req.Body,
	}
}
