package accessory

import (
	"context"
	"fmt"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
)

// Accessory is anything that exposes an ordered list of services to a host.
type Accessory interface {
	Services() []*Service
}

// Logger is the logging capability handed to accessories.
// *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Factory builds an accessory from its configuration record.
type Factory func(log Logger, cfg config.AccessoryConfig) (Accessory, error)

// FindService returns the first service of the given type.
func FindService(a Accessory, typ ServiceType) (*Service, error) {
	for _, s := range a.Services() {
		if s.Type == typ {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownService, typ)
}

// Read is a shorthand for FindService followed by Service.Get.
func Read(ctx context.Context, a Accessory, typ ServiceType, c CharacteristicType) (any, error) {
	svc, err := FindService(a, typ)
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, c)
}

// Write is a shorthand for FindService followed by Service.Set.
func Write(ctx context.Context, a Accessory, typ ServiceType, c CharacteristicType, value any) (any, error) {
	svc, err := FindService(a, typ)
	if err != nil {
		return nil, err
	}
	return svc.Set(ctx, c, value)
}

// WriteBool writes a boolean characteristic and returns the state the
// accessory confirmed, falling back to value when it confirmed nothing.
func WriteBool(ctx context.Context, a Accessory, typ ServiceType, c CharacteristicType, value bool) (bool, error) {
	applied, err := Write(ctx, a, typ, c, value)
	if err != nil {
		return false, err
	}
	if confirmed, ok := applied.(bool); ok {
		return confirmed, nil
	}
	return value, nil
}

// Instrument attaches request metrics to every service of a.
func Instrument(a Accessory, m *Metrics) {
	for _, s := range a.Services() {
		s.setMetrics(m)
	}
}
