// Package sdp contains a SDP encoder/decoder compatible with most RTSP implementations.
package sdp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

// SessionDescription is a SDP session description.
type SessionDescription psdp.SessionDescription

// Attribute returns the value of an attribute and if it exists.
func (s *SessionDescription) Attribute(key string) (string, bool) {
	return (*psdp.SessionDescription)(s).Attribute(key)
}

// Marshal encodes a SessionDescription.
func (s *SessionDescription) Marshal() ([]byte, error) {
	return (*psdp.SessionDescription)(s).Marshal()
}

func stringsReverseIndexByte(s string, b byte) int {
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// this is rewritten from scratch to make it compatible with most RTSP
// implementations, that often emit origins the base parser rejects.
func (s *SessionDescription) unmarshalOrigin(value string) error {
	value = strings.Replace(value, " IN IPV4 ", " IN IP4 ", 1)
	value = strings.Replace(value, " IN IPV6 ", " IN IP6 ", 1)

	if strings.HasSuffix(value, " IN") {
		value += " IP4"
	}

	if strings.HasSuffix(value, "IN IP4") {
		value += " "
	}

	i := strings.Index(value, " IN IP4 ")
	if i < 0 {
		i = strings.Index(value, " IN IP6 ")
		if i < 0 {
			return fmt.Errorf("invalid origin 'o=%s'", value)
		}
	}

	s.Origin.NetworkType = value[i+1 : i+3]
	s.Origin.AddressType = value[i+4 : i+7]
	s.Origin.UnicastAddress = strings.TrimSpace(value[i+8:])
	value = value[:i]

	i = stringsReverseIndexByte(value, ' ')
	if i >= 0 {
		var tmp string
		tmp, value = value[i+1:], value[:i]

		sessionVersion, err := strconv.ParseUint(tmp, 10, 64)
		if err == nil {
			s.Origin.SessionVersion = sessionVersion
		}

		i = stringsReverseIndexByte(value, ' ')
		if i >= 0 {
			tmp, value = value[i+1:], value[:i]

			sessionID, err := strconv.ParseUint(tmp, 10, 64)
			if err == nil {
				s.Origin.SessionID = sessionID
			}
		}
	}

	s.Origin.Username = value
	return nil
}

func parseConnection(value string) (*psdp.ConnectionInformation, error) {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid connection 'c=%s'", value)
	}

	return &psdp.ConnectionInformation{
		NetworkType: parts[0],
		AddressType: parts[1],
		Address:     &psdp.Address{Address: strings.Split(parts[2], "/")[0]},
	}, nil
}

func parseBandwidth(value string) (*psdp.Bandwidth, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid bandwidth 'b=%s'", value)
	}

	experimental := strings.HasPrefix(parts[0], "X-")

	bw, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid bandwidth 'b=%s'", value)
	}

	return &psdp.Bandwidth{
		Experimental: experimental,
		Type:         strings.TrimPrefix(parts[0], "X-"),
		Bandwidth:    bw,
	}, nil
}

func parseTiming(value string) (psdp.TimeDescription, error) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return psdp.TimeDescription{}, fmt.Errorf("invalid timing 't=%s'", value)
	}

	start, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return psdp.TimeDescription{}, fmt.Errorf("invalid timing 't=%s'", value)
	}

	stop, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return psdp.TimeDescription{}, fmt.Errorf("invalid timing 't=%s'", value)
	}

	return psdp.TimeDescription{
		Timing: psdp.Timing{StartTime: start, StopTime: stop},
	}, nil
}

func parseAttribute(value string) psdp.Attribute {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) == 2 {
		return psdp.Attribute{Key: parts[0], Value: parts[1]}
	}
	// flag form
	return psdp.Attribute{Key: value}
}

func parseMediaName(value string) (psdp.MediaName, error) {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return psdp.MediaName{}, fmt.Errorf("invalid media 'm=%s'", value)
	}

	port, err := strconv.ParseInt(strings.Split(parts[1], "/")[0], 10, 32)
	if err != nil {
		return psdp.MediaName{}, fmt.Errorf("invalid port 'm=%s'", value)
	}

	mn := psdp.MediaName{
		Media:  parts[0],
		Port:   psdp.RangedPort{Value: int(port)},
		Protos: strings.Split(parts[2], "/"),
	}

	// some cameras omit the format list; tolerate it
	mn.Formats = parts[3:]
	if len(mn.Formats) == 0 {
		mn.Formats = []string{"0"}
	}

	return mn, nil
}

// Unmarshal decodes a SessionDescription, tolerating
// the deviations most cameras and servers exhibit.
func (s *SessionDescription) Unmarshal(byts []byte) error {
	return s.unmarshal(byts, false)
}

// UnmarshalStrict decodes a SessionDescription, rejecting unknown keys
// and descriptions without a session name.
func (s *SessionDescription) UnmarshalStrict(byts []byte) error {
	return s.unmarshal(byts, true)
}

func (s *SessionDescription) unmarshal(byts []byte, strict bool) error {
	str := string(byts)

	versionReceived := false
	originReceived := false
	sessionNameReceived := false

	var curMedia *psdp.MediaDescription

	for _, line := range strings.Split(str, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		if len(line) < 2 || line[1] != '=' {
			if strict {
				return fmt.Errorf("invalid line (%s)", line)
			}
			continue
		}

		key, value := line[0], line[2:]

		// media-level keys
		if curMedia != nil && key != 'm' {
			switch key {
			case 'i':
				v := psdp.Information(value)
				curMedia.MediaTitle = &v

			case 'c':
				ci, err := parseConnection(value)
				if err != nil {
					return err
				}
				curMedia.ConnectionInformation = ci

			case 'b':
				bw, err := parseBandwidth(value)
				if err != nil {
					return err
				}
				curMedia.Bandwidth = append(curMedia.Bandwidth, *bw)

			case 'k':
				v := psdp.EncryptionKey(value)
				curMedia.EncryptionKey = &v

			case 'a':
				curMedia.Attributes = append(curMedia.Attributes, parseAttribute(value))

			default:
				if strict {
					return fmt.Errorf("invalid key at media level (%c)", key)
				}
			}
			continue
		}

		switch key {
		case 'v':
			if value != "0" {
				return fmt.Errorf("invalid version")
			}
			versionReceived = true

		case 'o':
			err := s.unmarshalOrigin(value)
			if err != nil {
				return err
			}
			originReceived = true

		case 's':
			s.SessionName = psdp.SessionName(value)
			if value != "" && value != " " {
				sessionNameReceived = true
			}

		case 'i':
			v := psdp.Information(value)
			s.SessionInformation = &v

		case 'u':
			u, err := url.Parse(value)
			if err == nil {
				s.URI = u
			}
			// the URI is informational; a malformed one is skipped

		case 'e':
			v := psdp.EmailAddress(value)
			s.EmailAddress = &v

		case 'p':
			v := psdp.PhoneNumber(value)
			s.PhoneNumber = &v

		case 'c':
			ci, err := parseConnection(value)
			if err != nil {
				return err
			}
			s.ConnectionInformation = ci

		case 'b':
			bw, err := parseBandwidth(value)
			if err != nil {
				return err
			}
			s.Bandwidth = append(s.Bandwidth, *bw)

		case 't':
			td, err := parseTiming(value)
			if err != nil {
				return err
			}
			s.TimeDescriptions = append(s.TimeDescriptions, td)

		case 'r', 'z', 'k':
			// repeat times, time zones and encryption keys are
			// accepted and skipped

		case 'a':
			s.Attributes = append(s.Attributes, parseAttribute(value))

		case 'm':
			mn, err := parseMediaName(value)
			if err != nil {
				return err
			}
			curMedia = &psdp.MediaDescription{MediaName: mn}
			s.MediaDescriptions = append(s.MediaDescriptions, curMedia)

		default:
			if strict {
				return fmt.Errorf("invalid key (%c)", key)
			}
		}
	}

	if !versionReceived {
		return fmt.Errorf("version is missing")
	}

	if !originReceived {
		return fmt.Errorf("origin is missing")
	}

	if strict && !sessionNameReceived {
		return fmt.Errorf("session name is missing")
	}

	if len(s.MediaDescriptions) == 0 {
		return fmt.Errorf("no media descriptions found")
	}

	return nil
}
