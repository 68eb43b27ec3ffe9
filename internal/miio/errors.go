package miio

import "errors"

// Domain errors for the miio relay.
var (
	// ErrTimeout is returned when the gateway does not answer before the
	// caller's deadline.
	ErrTimeout = errors.New("miio: request timed out")

	// ErrDevice is returned when the gateway reports a device-side error.
	ErrDevice = errors.New("miio: device returned an error")

	// ErrUnexpectedResult is returned when a response cannot be interpreted.
	ErrUnexpectedResult = errors.New("miio: unexpected result")

	// ErrRelay is returned when the request cannot be handed to the gateway.
	ErrRelay = errors.New("miio: relay unavailable")
)
