package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the slice of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

type HealthReporterConfig struct {
	AccessoryID string
	Version     string
	Interval    time.Duration // 30s when zero
	Publisher   HealthPublisher

	// Validity reports whether the accessory configuration is usable. A nil
	// func counts as always valid.
	Validity func() bool
}

// HealthReporter keeps a retained status document on miplug/health/outlet
// fresh: unhealthy while the accessory configuration is invalid, degraded
// while the broker link is down, healthy otherwise.
type HealthReporter struct {
	cfg      HealthReporterConfig
	interval time.Duration
	validity func() bool
	started  time.Time
	logger   atomic.Pointer[Logger]

	stop     chan struct{}
	loopDone sync.WaitGroup
	once     sync.Once
}

func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	h := &HealthReporter{
		cfg:      cfg,
		interval: cfg.Interval,
		validity: cfg.Validity,
		started:  time.Now(),
		stop:     make(chan struct{}),
	}
	if h.interval <= 0 {
		h.interval = defaultHealthInterval
	}
	if h.validity == nil {
		h.validity = func() bool { return true }
	}
	return h
}

func (h *HealthReporter) SetLogger(logger Logger) {
	h.logger.Store(&logger)
}

// Start publishes immediately and then every interval until ctx ends or
// Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.loopDone.Add(1)
	go func() {
		defer h.loopDone.Done()
		tick := time.NewTicker(h.interval)
		defer tick.Stop()
		for {
			if err := h.PublishNow(); err != nil {
				h.warn("failed to publish health", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case <-tick.C:
			}
		}
	}()
}

// Stop ends the loop and leaves a final "stopping" document. Repeated calls
// do nothing.
func (h *HealthReporter) Stop() {
	h.once.Do(func() {
		close(h.stop)
		h.loopDone.Wait()
		if err := h.publish(HealthStopping, ""); err != nil {
			h.warn("failed to publish stopping status", err)
		}
	})
}

func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status outside the regular schedule.
func (h *HealthReporter) PublishNow() error {
	switch {
	case !h.validity():
		return h.publish(HealthUnhealthy, "accessory configuration invalid")
	case h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected():
		return h.publish(HealthDegraded, "MQTT disconnected")
	default:
		return h.publish(HealthHealthy, "")
	}
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := json.Marshal(HealthMessage{
		Bridge:        Kind,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		AccessoryID:   h.cfg.AccessoryID,
		Reason:        reason,
	})
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(mqtt.Topics{}.Health(Kind), payload, 1, true)
}

func (h *HealthReporter) warn(msg string, err error) {
	if l := h.logger.Load(); l != nil && *l != nil {
		(*l).Warn(msg, "error", err)
	}
}
