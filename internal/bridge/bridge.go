package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/history"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/miplug-bridge/internal/outlet"
)

// commandTimeout bounds one command or read, on top of the adapter's own
// device timeout.
const commandTimeout = 10 * time.Second

// MQTTClient is the subset of *mqtt.Client used by the bridge.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// StateRecorder receives observed states and fans recorded changes out to
// listeners. *history.Recorder satisfies it.
type StateRecorder interface {
	Observe(ctx context.Context, on bool, source string) bool
	Subscribe(l history.Listener)
}

// Logger is the structured logging capability used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds the bridge's collaborators.
type Options struct {
	AccessoryID string
	Accessory   accessory.Accessory
	MQTTClient  MQTTClient
	Recorder    StateRecorder
	Logger      Logger

	Version        string
	HealthInterval time.Duration
}

// Bridge translates MQTT commands and requests into accessory reads and
// writes.
type Bridge struct {
	id        string
	accessory accessory.Accessory
	mqtt      MQTTClient
	recorder  StateRecorder
	health    *HealthReporter
	topics    mqtt.Topics

	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.AccessoryID == "" {
		return nil, fmt.Errorf("accessory id is required")
	}
	if opts.Accessory == nil {
		return nil, fmt.Errorf("accessory is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Recorder == nil {
		return nil, fmt.Errorf("state recorder is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:        opts.AccessoryID,
		accessory: opts.Accessory,
		mqtt:      opts.MQTTClient,
		recorder:  opts.Recorder,
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		AccessoryID: opts.AccessoryID,
		Version:     opts.Version,
		Interval:    opts.HealthInterval,
		Publisher:   opts.MQTTClient,
		Validity:    validityOf(opts.Accessory),
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// validityOf returns the accessory's validity check, or one that always
// reports valid for accessories without one.
func validityOf(a accessory.Accessory) func() bool {
	if v, ok := a.(interface{ Valid() bool }); ok {
		return v.Valid
	}
	return func() bool { return true }
}

// Start subscribes to the command and request topics, starts republishing
// recorded state changes and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := b.topics.Command(Kind, b.id)
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := b.topics.AllRequests(Kind)
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleRequest); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.recorder.Subscribe(b.publishState)

	b.health.Start(ctx)

	b.logInfo("bridge started", "accessory_id", b.id)
	return nil
}

// Stop cancels in-flight commands and publishes a final stopping status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// handleCommand processes one command payload.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		// Bare "on"/"off"/"toggle" payloads are accepted for simple clients.
		cmd = CommandMessage{Command: strings.Trim(string(payload), "\" \t\r\n")}
	}
	ensureCommandID(&cmd)

	b.logInfo("received command", "command_id", cmd.ID, "command", cmd.Command)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	var target bool
	switch strings.ToLower(cmd.Command) {
	case CommandOn:
		target = true
	case CommandOff:
		target = false
	case CommandToggle:
		current, err := b.readState(ctx)
		if err != nil {
			b.publishAckError(cmd, err)
			return nil
		}
		target = !current
	default:
		b.publishAck(NewAckError(cmd, b.id, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %q", cmd.Command)))
		return nil
	}

	confirmed, err := accessory.WriteBool(ctx, b.accessory, accessory.Switch, accessory.On, target)
	if err != nil {
		b.publishAckError(cmd, err)
		return nil
	}

	b.publishAck(NewAck(cmd, b.id, confirmed))
	b.recorder.Observe(ctx, confirmed, history.SourceMQTT)
	return nil
}

// handleRequest processes one request payload. The request ID is taken
// from the topic when the payload omits it.
func (b *Bridge) handleRequest(topic string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return nil
	}
	if req.RequestID == "" {
		req.RequestID = topic[strings.LastIndex(topic, "/")+1:]
	}

	b.logInfo("received request", "request_id", req.RequestID, "action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case ActionReadState:
		resp = b.handleReadState(req)
	default:
		resp = NewErrorResponse(req.RequestID, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return nil
	}
	if err := b.mqtt.Publish(b.topics.Response(Kind, req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
	return nil
}

func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	on, err := b.readState(ctx)
	if err != nil {
		code, message := classify(err)
		return NewErrorResponse(req.RequestID, code, message)
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"accessory_id": b.id,
			"on":           on,
		},
	}
}

// readState reads On through the accessory and records the observation.
// A nil value means the accessory has nothing to report, which only happens
// with an invalid configuration.
func (b *Bridge) readState(ctx context.Context) (bool, error) {
	value, err := accessory.Read(ctx, b.accessory, accessory.Switch, accessory.On)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, outlet.ErrConfigurationInvalid
	}
	on, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected On value %T", value)
	}
	b.recorder.Observe(ctx, on, history.SourceMQTT)
	return on, nil
}

// publishState publishes a recorded change as the retained state.
func (b *Bridge) publishState(entry history.Entry) {
	msg := NewStateMessage(entry.AccessoryID, entry.On, entry.Source, entry.RecordedAt)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.State(Kind, b.id), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

func (b *Bridge) publishAckError(cmd CommandMessage, err error) {
	code, message := classify(err)
	b.logError("command failed", err, "command_id", cmd.ID, "code", code)
	b.publishAck(NewAckError(cmd, b.id, code, message))
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(Kind, b.id), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// classify maps an accessory error to an ack or response error code.
func classify(err error) (code, message string) {
	switch {
	case errors.Is(err, outlet.ErrConfigurationInvalid):
		return ErrCodeConfigurationInvalid, "accessory configuration invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout, "device did not respond in time"
	case errors.Is(err, outlet.ErrInvalidValue):
		return ErrCodeInvalidPayload, err.Error()
	default:
		return ErrCodeDeviceUnreachable, err.Error()
	}
}

// SetLogger replaces the logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
