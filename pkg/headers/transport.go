package headers

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/camgrab/rtspclient/pkg/base"
)

// TransportProtocol is a transport protocol.
type TransportProtocol int

// transport protocols.
const (
	// TransportProtocolUDP is the UDP transport protocol
	TransportProtocolUDP TransportProtocol = iota

	// TransportProtocolTCP is the TCP transport protocol
	TransportProtocolTCP
)

// TransportDelivery is a delivery method.
type TransportDelivery int

// delivery methods.
const (
	// TransportDeliveryUnicast is the unicast delivery method
	TransportDeliveryUnicast TransportDelivery = iota

	// TransportDeliveryMulticast is the multicast delivery method
	TransportDeliveryMulticast
)

// TransportMode is a transport mode.
type TransportMode int

const (
	// TransportModePlay is the "play" transport mode
	TransportModePlay TransportMode = iota

	// TransportModeRecord is the "record" transport mode
	TransportModeRecord
)

// Transport is a Transport header.
type Transport struct {
	// protocol of the stream
	Protocol TransportProtocol

	// (optional) delivery method of the stream
	Delivery *TransportDelivery

	// (optional) source IP
	Source *net.IP

	// (optional) destination IP
	Destination *net.IP

	// (optional) TTL
	TTL *uint

	// (optional) ports
	Ports *[2]int

	// (optional) client ports
	ClientPorts *[2]int

	// (optional) server ports
	ServerPorts *[2]int

	// (optional) interleaved frame ids
	InterleavedIDs *[2]int

	// (optional) SSRC of the packets of the stream
	SSRC *uint32

	// (optional) mode
	Mode *TransportMode
}

func parsePorts(val string) (*[2]int, error) {
	ports := strings.Split(val, "-")
	if len(ports) == 2 {
		port1, err := strconv.ParseInt(ports[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ports (%v)", val)
		}

		port2, err := strconv.ParseInt(ports[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ports (%v)", val)
		}

		return &[2]int{int(port1), int(port2)}, nil
	}

	if len(ports) == 1 {
		port1, err := strconv.ParseInt(ports[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ports (%v)", val)
		}

		return &[2]int{int(port1), int(port1 + 1)}, nil
	}

	return nil, fmt.Errorf("invalid ports (%v)", val)
}

// Unmarshal decodes a Transport header.
func (h *Transport) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	parts := strings.Split(v[0], ";")

	switch parts[0] {
	case "RTP/AVP", "RTP/AVP/UDP":
		h.Protocol = TransportProtocolUDP

	case "RTP/AVP/TCP":
		h.Protocol = TransportProtocolTCP

	default:
		return fmt.Errorf("invalid protocol (%v)", v)
	}
	parts = parts[1:]

	if len(parts) > 0 {
		switch parts[0] {
		case "unicast":
			d := TransportDeliveryUnicast
			h.Delivery = &d
			parts = parts[1:]

		case "multicast":
			d := TransportDeliveryMulticast
			h.Delivery = &d
			parts = parts[1:]
		}
		// cast is optional, do not return any error
	}

	for _, t := range parts {
		switch {
		case strings.HasPrefix(t, "source="):
			v := net.ParseIP(t[len("source="):])
			if v == nil {
				// source can be a hostname, ignore it in that case
				continue
			}
			h.Source = &v

		case strings.HasPrefix(t, "destination="):
			v := net.ParseIP(t[len("destination="):])
			if v == nil {
				return fmt.Errorf("invalid destination (%v)", t)
			}
			h.Destination = &v

		case strings.HasPrefix(t, "ttl="):
			v, err := strconv.ParseUint(t[len("ttl="):], 10, 64)
			if err != nil {
				return err
			}
			vu := uint(v)
			h.TTL = &vu

		case strings.HasPrefix(t, "port="):
			ports, err := parsePorts(t[len("port="):])
			if err != nil {
				return err
			}
			h.Ports = ports

		case strings.HasPrefix(t, "client_port="):
			ports, err := parsePorts(t[len("client_port="):])
			if err != nil {
				return err
			}
			h.ClientPorts = ports

		case strings.HasPrefix(t, "server_port="):
			ports, err := parsePorts(t[len("server_port="):])
			if err != nil {
				return err
			}
			h.ServerPorts = ports

		case strings.HasPrefix(t, "interleaved="):
			ports, err := parsePorts(t[len("interleaved="):])
			if err != nil {
				return err
			}
			h.InterleavedIDs = ports

		case strings.HasPrefix(t, "ssrc="):
			tmp, err := strconv.ParseUint(strings.TrimLeft(t[len("ssrc="):], " "), 16, 32)
			if err != nil {
				return err
			}
			v := uint32(tmp)
			h.SSRC = &v

		case strings.HasPrefix(t, "mode="):
			str := strings.ToLower(t[len("mode="):])
			str = strings.TrimPrefix(str, "\"")
			str = strings.TrimSuffix(str, "\"")

			switch str {
			case "play":
				v := TransportModePlay
				h.Mode = &v

				// receive is an old alias for record, used by ffmpeg with the
				// -listen flag, and by Darwin Streaming Server
			case "record", "receive":
				v := TransportModeRecord
				h.Mode = &v

			default:
				return fmt.Errorf("invalid transport mode: '%s'", str)
			}
		}
		// ignore non-standard keys
	}

	return nil
}

// Marshal encodes a Transport header.
func (h Transport) Marshal() base.HeaderValue {
	var rets []string

	if h.Protocol == TransportProtocolUDP {
		rets = append(rets, "RTP/AVP")
	} else {
		rets = append(rets, "RTP/AVP/TCP")
	}

	if h.Delivery != nil {
		if *h.Delivery == TransportDeliveryUnicast {
			rets = append(rets, "unicast")
		} else {
			rets = append(rets, "multicast")
		}
	}

	if h.Destination != nil {
		rets = append(rets, "destination="+h.Destination.String())
	}

	if h.TTL != nil {
		rets = append(rets, "ttl="+strconv.FormatUint(uint64(*h.TTL), 10))
	}

	if h.Ports != nil {
		rets = append(rets, "port="+strconv.FormatInt(int64(h.Ports[0]), 10)+
			"-"+strconv.FormatInt(int64(h.Ports[1]), 10))
	}

	if h.ClientPorts != nil {
		rets = append(rets, "client_port="+strconv.FormatInt(int64(h.ClientPorts[0]), 10)+
			"-"+strconv.FormatInt(int64(h.ClientPorts[1]), 10))
	}

	if h.ServerPorts != nil {
		rets = append(rets, "server_port="+strconv.FormatInt(int64(h.ServerPorts[0]), 10)+
			"-"+strconv.FormatInt(int64(h.ServerPorts[1]), 10))
	}

	if h.InterleavedIDs != nil {
		rets = append(rets, "interleaved="+strconv.FormatInt(int64(h.InterleavedIDs[0]), 10)+
			"-"+strconv.FormatInt(int64(h.InterleavedIDs[1]), 10))
	}

	if h.SSRC != nil {
		rets = append(rets, "ssrc="+fmt.Sprintf("%08X", *h.SSRC))
	}

	if h.Mode != nil {
		if *h.Mode == TransportModePlay {
			rets = append(rets, "mode=play")
		} else {
			rets = append(rets, "mode=record")
		}
	}

	return base.HeaderValue{strings.Join(rets, ";")}
}
