package outlet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
)

// TypeName is the accessory type this package registers under.
const TypeName = "MiSmartPlug"

// Defaults applied when the configuration leaves a field empty.
const (
	DefaultManufacturer   = "Xiaomi"
	DefaultModel          = "ZNCZ05CM"
	DefaultRequestTimeout = 5 * time.Second
)

// DeviceClient performs power-state round trips against one plug.
// Set returns the state the device confirmed.
type DeviceClient interface {
	Get(ctx context.Context) (bool, error)
	Set(ctx context.Context, on bool) (bool, error)
}

// DeviceDialer builds a DeviceClient for an address and token. It must not
// fail on a malformed identity; errors surface on first use.
type DeviceDialer func(address, token string) DeviceClient

// Deps are the host capabilities injected into every adapter.
type Deps struct {
	Logger accessory.Logger
	Dial   DeviceDialer
}

// Config is the per-instance configuration record.
type Config struct {
	Name           string
	IP             string
	Token          string
	Manufacturer   string
	Model          string
	RequestTimeout time.Duration
}

// Identity is the immutable address and credential pair of one plug.
type Identity struct {
	Name    string
	Address string
	Token   string
}

// Adapter exposes one plug as an accessory with an information service and
// a switch service.
type Adapter struct {
	identity Identity
	valid    bool
	device   DeviceClient
	log      accessory.Logger
	timeout  time.Duration

	information *accessory.Service
	power       *accessory.Service
}

// New builds the adapter. It never fails: an invalid identity is logged and
// leaves the accessory in a disabled state.
func New(deps Deps, cfg Config) *Adapter {
	a := &Adapter{
		identity: Identity{
			Name:    cfg.Name,
			Address: cfg.IP,
			Token:   cfg.Token,
		},
		log:     deps.Logger,
		timeout: cfg.RequestTimeout,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultRequestTimeout
	}

	a.device = deps.Dial(a.identity.Address, a.identity.Token)
	a.valid = Validate(a.log, a.identity.Address, a.identity.Token)

	a.power = accessory.NewService(accessory.Switch, a.identity.Name).
		SetCharacteristic(accessory.Name, a.identity.Name).
		OnGet(accessory.On, a.HandleGet).
		OnSet(accessory.On, a.SetOn)

	a.information = accessory.NewService(accessory.AccessoryInformation, a.identity.Name).
		SetCharacteristic(accessory.Manufacturer, orDefault(cfg.Manufacturer, DefaultManufacturer)).
		SetCharacteristic(accessory.Model, orDefault(cfg.Model, DefaultModel)).
		SetCharacteristic(accessory.SerialNumber, a.identity.Address)

	a.log.Info("Initialization finished")
	return a
}

// Factory adapts New to the accessory registry.
func Factory(dial DeviceDialer) accessory.Factory {
	return func(log accessory.Logger, cfg config.AccessoryConfig) (accessory.Accessory, error) {
		return New(Deps{Logger: log, Dial: dial}, Config{
			Name:           cfg.Name,
			IP:             cfg.IP,
			Token:          cfg.Token,
			Manufacturer:   cfg.Manufacturer,
			Model:          cfg.Model,
			RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		}), nil
	}
}

// HandleGet reads the current power state.
//
// With an invalid identity it logs the validation errors again and returns
// (nil, nil) without contacting the device.
func (a *Adapter) HandleGet(ctx context.Context) (any, error) {
	if !a.valid {
		Validate(a.log, a.identity.Address, a.identity.Token)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	on, err := a.device.Get(ctx)
	if err != nil {
		a.log.Error(err.Error())
		return nil, fmt.Errorf("%w: reading power state: %w", ErrDeviceCommunication, err)
	}

	a.log.Info("Current state " + stateLabel(on))
	return on, nil
}

// HandleSet switches the plug on or off.
//
// With an invalid identity it logs the validation errors again and returns
// ErrConfigurationInvalid without contacting the device.
func (a *Adapter) HandleSet(ctx context.Context, value any) error {
	_, err := a.SetOn(ctx, value)
	return err
}

// SetOn is HandleSet returning the state the device confirmed. It is the
// write handler registered for On.
func (a *Adapter) SetOn(ctx context.Context, value any) (any, error) {
	if !a.valid {
		Validate(a.log, a.identity.Address, a.identity.Token)
		return nil, ErrConfigurationInvalid
	}

	on, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidValue, value)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	confirmed, err := a.device.Set(ctx, on)
	if err != nil {
		a.log.Error(err.Error())
		return nil, fmt.Errorf("%w: setting power state: %w", ErrDeviceCommunication, err)
	}

	a.log.Info(fmt.Sprintf("Switch state was set to: %t", confirmed))
	return confirmed, nil
}

// Services returns the information service followed by the switch service.
func (a *Adapter) Services() []*accessory.Service {
	return []*accessory.Service{a.information, a.power}
}

// Identity returns a copy of the adapter's identity.
func (a *Adapter) Identity() Identity {
	return a.identity
}

// Valid reports the validity computed at construction.
func (a *Adapter) Valid() bool {
	return a.valid
}

func stateLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
