package homekit

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/brutella/hap"
	hapaccessory "github.com/brutella/hap/accessory"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/history"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
)

// HAP status codes returned from characteristic request handlers.
const (
	statusSuccess              = 0
	statusCommunicationFailure = -70402
	statusInvalidValue         = -70410
)

// StateRecorder receives observed states. *history.Recorder satisfies it.
type StateRecorder interface {
	Observe(ctx context.Context, on bool, source string) bool
	Subscribe(l history.Listener)
}

// Logger is the logging capability used by the binding.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Binding is one accessory exposed over HAP.
type Binding struct {
	cfg       config.HomeKitConfig
	accessory accessory.Accessory
	recorder  StateRecorder
	log       Logger
	outlet    *hapaccessory.Outlet

	mu     sync.Mutex
	server *hap.Server
}

// New builds the HAP outlet and wires its On characteristic. It performs no
// network I/O; call Run to start serving.
func New(cfg config.HomeKitConfig, a accessory.Accessory, recorder StateRecorder, log Logger, version string) (*Binding, error) {
	info, err := accessory.FindService(a, accessory.AccessoryInformation)
	if err != nil {
		return nil, fmt.Errorf("homekit: %w", err)
	}
	power, err := accessory.FindService(a, accessory.Switch)
	if err != nil {
		return nil, fmt.Errorf("homekit: %w", err)
	}

	name := power.StringValue(accessory.Name)
	if name == "" {
		name = info.Name
	}

	outlet := hapaccessory.NewOutlet(hapaccessory.Info{
		Name:         name,
		SerialNumber: info.StringValue(accessory.SerialNumber),
		Manufacturer: info.StringValue(accessory.Manufacturer),
		Model:        info.StringValue(accessory.Model),
		Firmware:     version,
	})
	outlet.Outlet.OutletInUse.SetValue(true)

	b := &Binding{
		cfg:       cfg,
		accessory: a,
		recorder:  recorder,
		log:       log,
		outlet:    outlet,
	}

	outlet.Outlet.On.ValueRequestFunc = b.readOn
	outlet.Outlet.On.SetValueRequestFunc = b.writeOn
	recorder.Subscribe(b.notify)

	return b, nil
}

// Run serves HAP until ctx is cancelled.
func (b *Binding) Run(ctx context.Context) error {
	server, err := hap.NewServer(hap.NewFsStore(b.cfg.StorageDir), b.outlet.A)
	if err != nil {
		return fmt.Errorf("homekit: creating server: %w", err)
	}
	server.Pin = b.cfg.Pin
	if b.cfg.Port > 0 {
		server.Addr = fmt.Sprintf(":%d", b.cfg.Port)
	}

	b.mu.Lock()
	b.server = server
	b.mu.Unlock()

	b.log.Info("homekit server starting", "name", b.outlet.A.Info.Name.Value(), "port", b.cfg.Port)

	err = server.ListenAndServe(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("homekit: %w", err)
	}
	return nil
}

// readOn answers a controller read. When the accessory has nothing to
// report, the last known value is returned so the controller keeps showing
// it.
func (b *Binding) readOn(r *http.Request) (interface{}, int) {
	ctx := requestContext(r)

	value, err := accessory.Read(ctx, b.accessory, accessory.Switch, accessory.On)
	if err != nil {
		b.log.Warn("homekit read failed", "error", err)
		return nil, statusCommunicationFailure
	}
	if value == nil {
		return b.outlet.Outlet.On.Value(), statusSuccess
	}

	on, ok := value.(bool)
	if !ok {
		return nil, statusCommunicationFailure
	}
	b.recorder.Observe(ctx, on, history.SourceHomeKit)
	return on, statusSuccess
}

// writeOn applies a controller write.
func (b *Binding) writeOn(value interface{}, r *http.Request) (interface{}, int) {
	on, ok := value.(bool)
	if !ok {
		return nil, statusInvalidValue
	}

	ctx := requestContext(r)
	confirmed, err := accessory.WriteBool(ctx, b.accessory, accessory.Switch, accessory.On, on)
	if err != nil {
		b.log.Warn("homekit write failed", "error", err, "on", on)
		return nil, statusCommunicationFailure
	}

	b.recorder.Observe(ctx, confirmed, history.SourceHomeKit)
	return nil, statusSuccess
}

// notify pushes changes made through other surfaces to paired controllers.
func (b *Binding) notify(entry history.Entry) {
	if entry.Source == history.SourceHomeKit {
		return
	}
	b.outlet.Outlet.On.SetValue(entry.On)
}

func requestContext(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}
