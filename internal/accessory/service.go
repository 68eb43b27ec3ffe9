package accessory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ServiceType identifies what a service represents to the host.
type ServiceType string

// Service types used by the bridge.
const (
	AccessoryInformation ServiceType = "AccessoryInformation"
	Switch               ServiceType = "Switch"
)

// CharacteristicType identifies a single attribute of a service.
type CharacteristicType string

// Characteristic types used by the bridge.
const (
	On           CharacteristicType = "On"
	Name         CharacteristicType = "Name"
	Manufacturer CharacteristicType = "Manufacturer"
	Model        CharacteristicType = "Model"
	SerialNumber CharacteristicType = "SerialNumber"
)

// GetFunc answers a characteristic read. A nil value with a nil error means
// the accessory has nothing to report.
type GetFunc func(ctx context.Context) (any, error)

// SetFunc applies a characteristic write and returns the value the
// accessory reports after the write. A nil result means it confirmed
// nothing beyond success.
type SetFunc func(ctx context.Context, value any) (any, error)

// CharacteristicInfo describes one characteristic for listings.
type CharacteristicInfo struct {
	Type     CharacteristicType `json:"type"`
	Value    any                `json:"value,omitempty"`
	Readable bool               `json:"readable"`
	Writable bool               `json:"writable"`
}

// Service is an ordered set of characteristics with a dispatch table of
// read and write handlers.
type Service struct {
	Type ServiceType
	Name string

	mu      sync.RWMutex
	order   []CharacteristicType
	values  map[CharacteristicType]any
	getters map[CharacteristicType]GetFunc
	setters map[CharacteristicType]SetFunc
	metrics *Metrics
}

// NewService creates an empty service.
func NewService(typ ServiceType, name string) *Service {
	return &Service{
		Type:    typ,
		Name:    name,
		values:  make(map[CharacteristicType]any),
		getters: make(map[CharacteristicType]GetFunc),
		setters: make(map[CharacteristicType]SetFunc),
	}
}

// SetCharacteristic stores a static value and returns the service for chaining.
func (s *Service) SetCharacteristic(c CharacteristicType, value any) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(c)
	s.values[c] = value
	return s
}

// OnGet registers the read handler for c, replacing any previous one.
func (s *Service) OnGet(c CharacteristicType, fn GetFunc) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(c)
	s.getters[c] = fn
	return s
}

// OnSet registers the write handler for c, replacing any previous one.
func (s *Service) OnSet(c CharacteristicType, fn SetFunc) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(c)
	s.setters[c] = fn
	return s
}

// track records first-seen order. Caller holds s.mu.
func (s *Service) track(c CharacteristicType) {
	for _, existing := range s.order {
		if existing == c {
			return
		}
	}
	s.order = append(s.order, c)
}

// Characteristics lists the service's characteristics in registration order.
// Handler-backed characteristics are listed without calling their handlers.
func (s *Service) Characteristics() []CharacteristicInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CharacteristicInfo, 0, len(s.order))
	for _, c := range s.order {
		value, static := s.values[c]
		_, hasGet := s.getters[c]
		_, hasSet := s.setters[c]
		info := CharacteristicInfo{
			Type:     c,
			Readable: static || hasGet,
			Writable: hasSet,
		}
		if static && !hasGet {
			info.Value = value
		}
		out = append(out, info)
	}
	return out
}

// Get reads c through its handler, or returns its static value.
func (s *Service) Get(ctx context.Context, c CharacteristicType) (any, error) {
	s.mu.RLock()
	fn, hasGet := s.getters[c]
	value, static := s.values[c]
	metrics := s.metrics
	s.mu.RUnlock()

	if !hasGet {
		if static {
			return value, nil
		}
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownCharacteristic, s.Type, c)
	}

	start := time.Now()
	v, err := fn(ctx)
	metrics.observe(s.Type, c, "get", start, err)
	return v, err
}

// Set writes value to c through its handler and returns the applied value.
func (s *Service) Set(ctx context.Context, c CharacteristicType, value any) (any, error) {
	s.mu.RLock()
	fn, ok := s.setters[c]
	metrics := s.metrics
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotWritable, s.Type, c)
	}

	start := time.Now()
	applied, err := fn(ctx, value)
	metrics.observe(s.Type, c, "set", start, err)
	return applied, err
}

// Value returns a static characteristic value.
func (s *Service) Value(c CharacteristicType) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[c]
	return v, ok
}

// StringValue returns a static characteristic as a string, or "" if unset.
func (s *Service) StringValue(c CharacteristicType) string {
	v, ok := s.Value(c)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

func (s *Service) setMetrics(m *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}
