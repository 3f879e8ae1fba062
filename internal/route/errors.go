package route

import "errors"

// Sentinel errors for Table operations.
var (
	// ErrOutOfRange indicates a port of arrival maps outside [PortOffset,
	// PortOffset+Channels).
	ErrOutOfRange = errors.New("route: port of arrival out of range")

	// ErrMalformedEndpoint indicates a Message's ip or mac field could not
	// be parsed.
	ErrMalformedEndpoint = errors.New("route: malformed endpoint field")
)
