package accessory

import "errors"

// Domain errors for the accessory package.
var (
	// ErrUnknownCharacteristic is returned when a service does not carry the
	// requested characteristic.
	ErrUnknownCharacteristic = errors.New("accessory: unknown characteristic")

	// ErrNotWritable is returned when Set is called on a characteristic with
	// no write handler.
	ErrNotWritable = errors.New("accessory: characteristic is not writable")

	// ErrUnknownService is returned when an accessory has no service of the
	// requested type.
	ErrUnknownService = errors.New("accessory: unknown service")

	// ErrUnknownType is returned when no factory is registered for an
	// accessory type name.
	ErrUnknownType = errors.New("accessory: unknown accessory type")

	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("accessory: accessory type already registered")
)
