package outlet

import "errors"

// Domain errors for the outlet package.
var (
	// ErrConfigurationInvalid is returned when a write is attempted on an
	// accessory whose address or token failed validation.
	ErrConfigurationInvalid = errors.New("outlet: configuration invalid")

	// ErrDeviceCommunication wraps every failure reported by the device client.
	ErrDeviceCommunication = errors.New("outlet: device communication failed")

	// ErrInvalidValue is returned when a write carries a non-boolean value.
	ErrInvalidValue = errors.New("outlet: value must be a boolean")
)
