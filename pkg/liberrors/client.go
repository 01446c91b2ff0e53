// Package liberrors contains errors returned by the library.
package liberrors

import (
	"fmt"

	"github.com/camgrab/rtspclient/pkg/base"
)

// ErrClientTerminated is returned when the client has been terminated.
type ErrClientTerminated struct{}

// Error implements the error interface.
func (e ErrClientTerminated) Error() string {
	return "terminated"
}

// ErrClientSessionClosed is returned when an operation is attempted
// on a closed session.
type ErrClientSessionClosed struct{}

// Error implements the error interface.
func (e ErrClientSessionClosed) Error() string {
	return "session is closed"
}

// ErrClientNotConnected is returned when an operation requires a
// completed handshake.
type ErrClientNotConnected struct{}

// Error implements the error interface.
func (e ErrClientNotConnected) Error() string {
	return "not connected"
}

// ErrClientInvalidState is returned in case of an invalid client state.
type ErrClientInvalidState struct {
	AllowedList []fmt.Stringer
	State       fmt.Stringer
}

// Error implements the error interface.
func (e ErrClientInvalidState) Error() string {
	return fmt.Sprintf("must be in state %v, while is in state %v",
		e.AllowedList, e.State)
}

// ErrClientBadStatusCode is returned in case of a bad status code.
type ErrClientBadStatusCode struct {
	Code    base.StatusCode
	Message string
}

// Error implements the error interface.
func (e ErrClientBadStatusCode) Error() string {
	return fmt.Sprintf("bad status code: %d (%s)", e.Code, e.Message)
}

// ErrClientAuthenticationFailed is returned when authentication
// has definitively failed.
type ErrClientAuthenticationFailed struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientAuthenticationFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return "authentication failed"
}

// ErrClientUnsupportedMedia is returned when no media section could be
// matched with a supported depayloader.
type ErrClientUnsupportedMedia struct{}

// Error implements the error interface.
func (e ErrClientUnsupportedMedia) Error() string {
	return "no supported media found in the stream description"
}

// ErrClientProtocolViolation is returned in case of a malformed message
// or an unexpected behavior of the counterpart.
type ErrClientProtocolViolation struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %v", e.Err)
}

// ErrClientTimeout is returned when no data is received within the
// configured read timeout.
type ErrClientTimeout struct{}

// Error implements the error interface.
func (e ErrClientTimeout) Error() string {
	return "timeout"
}

// ErrClientTransportUnreachable is returned when the server cannot be reached.
type ErrClientTransportUnreachable struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientTransportUnreachable) Error() string {
	return fmt.Sprintf("server unreachable: %v", e.Err)
}

// ErrClientContentTypeMissing is returned in case the Content-Type header is missing.
type ErrClientContentTypeMissing struct{}

// Error implements the error interface.
func (e ErrClientContentTypeMissing) Error() string {
	return "Content-Type header is missing"
}

// ErrClientContentTypeUnsupported is returned in case the Content-Type header is unsupported.
type ErrClientContentTypeUnsupported struct {
	CT base.HeaderValue
}

// Error implements the error interface.
func (e ErrClientContentTypeUnsupported) Error() string {
	return fmt.Sprintf("unsupported Content-Type header '%v'", e.CT)
}

// ErrClientSessionHeaderInvalid is returned in case of an invalid session header.
type ErrClientSessionHeaderInvalid struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientSessionHeaderInvalid) Error() string {
	return fmt.Sprintf("invalid session header: %v", e.Err)
}

// ErrClientSessionChanged is returned when a response carries a
// session id different from the one received previously.
type ErrClientSessionChanged struct{}

// Error implements the error interface.
func (e ErrClientSessionChanged) Error() string {
	return "session id changed in the middle of the handshake"
}

// ErrClientTransportHeaderInvalid is returned in case the transport header is invalid.
type ErrClientTransportHeaderInvalid struct {
	Err error
}

// Error implements the error interface.
func (e ErrClientTransportHeaderInvalid) Error() string {
	return fmt.Sprintf("invalid transport header: %v", e.Err)
}

// ErrClientTransportHeaderInvalidDelivery is returned in case the delivery
// reported by the transport header is invalid.
type ErrClientTransportHeaderInvalidDelivery struct{}

// Error implements the error interface.
func (e ErrClientTransportHeaderInvalidDelivery) Error() string {
	return "transport header contains an invalid delivery value"
}

// ErrClientTransportHeaderNoPorts is returned in case the transport header
// doesn't contain ports.
type ErrClientTransportHeaderNoPorts struct{}

// Error implements the error interface.
func (e ErrClientTransportHeaderNoPorts) Error() string {
	return "transport header does not contain ports"
}

// ErrClientTransportHeaderNoDestination is returned in case the transport
// header doesn't contain a destination.
type ErrClientTransportHeaderNoDestination struct{}

// Error implements the error interface.
func (e ErrClientTransportHeaderNoDestination) Error() string {
	return "transport header does not contain a destination"
}

// ErrClientTransportHeaderNoInterleavedIDs is returned in case the transport
// header doesn't contain interleaved IDs.
type ErrClientTransportHeaderNoInterleavedIDs struct{}

// Error implements the error interface.
func (e ErrClientTransportHeaderNoInterleavedIDs) Error() string {
	return "transport header does not contain interleaved IDs"
}

// ErrClientTransportHeaderInvalidInterleavedIDs is returned in case the
// transport header contains invalid interleaved IDs.
type ErrClientTransportHeaderInvalidInterleavedIDs struct{}

// Error implements the error interface.
func (e ErrClientTransportHeaderInvalidInterleavedIDs) Error() string {
	return "invalid interleaved IDs"
}

// ErrClientServerPortsNotProvided is returned in case the server ports
// have not been provided.
type ErrClientServerPortsNotProvided struct{}

// Error implements the error interface.
func (e ErrClientServerPortsNotProvided) Error() string {
	return "server ports have not been provided. Use AnyPortEnable to communicate with this server"
}

// ErrClientNoFreePortPair is returned when no UDP port pair could be bound.
type ErrClientNoFreePortPair struct{}

// Error implements the error interface.
func (e ErrClientNoFreePortPair) Error() string {
	return "no free port pair"
}

// ErrClientUDPTimeout is returned when UDP packets stopped being received.
type ErrClientUDPTimeout struct{}

// Error implements the error interface.
func (e ErrClientUDPTimeout) Error() string {
	return "UDP timeout"
}

// ErrClientTCPTimeout is returned when TCP frames stopped being received.
type ErrClientTCPTimeout struct{}

// Error implements the error interface.
func (e ErrClientTCPTimeout) Error() string {
	return "TCP timeout"
}
