package bridge

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the accessory kind segment used in every bridge topic.
const Kind = "outlet"

// Command names accepted on the command topic.
const (
	CommandOn     = "on"
	CommandOff    = "off"
	CommandToggle = "toggle"
)

// Request actions accepted on the request topic.
const ActionReadState = "read_state"

// CommandMessage asks the bridge to change the power state.
type CommandMessage struct {
	// ID correlates the acknowledgement. Generated when empty.
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Source    string    `json:"source,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// Error codes reported in acks and responses.
const (
	ErrCodeInvalidCommand       = "INVALID_COMMAND"
	ErrCodeInvalidPayload       = "INVALID_PAYLOAD"
	ErrCodeConfigurationInvalid = "CONFIGURATION_INVALID"
	ErrCodeDeviceUnreachable    = "DEVICE_UNREACHABLE"
	ErrCodeTimeout              = "TIMEOUT"
)

// AckMessage acknowledges a command.
type AckMessage struct {
	CommandID   string    `json:"command_id"`
	Timestamp   time.Time `json:"timestamp"`
	AccessoryID string    `json:"accessory_id"`
	Status      AckStatus `json:"status"`
	On          *bool     `json:"on,omitempty"`
	Error       *AckError `json:"error,omitempty"`
}

// AckError describes a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is the retained power state.
type StateMessage struct {
	AccessoryID string    `json:"accessory_id"`
	Timestamp   time.Time `json:"timestamp"`
	On          bool      `json:"on"`
	Source      string    `json:"source"`
}

// RequestMessage is a request/response operation.
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

// ResponseMessage answers a RequestMessage.
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthStatus is the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage is published retained on the health topic.
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	AccessoryID   string       `json:"accessory_id"`
	Reason        string       `json:"reason,omitempty"`
}

// NewAck builds a successful acknowledgement carrying the confirmed state.
func NewAck(cmd CommandMessage, accessoryID string, on bool) AckMessage {
	return AckMessage{
		CommandID:   cmd.ID,
		Timestamp:   time.Now().UTC(),
		AccessoryID: accessoryID,
		Status:      AckAccepted,
		On:          &on,
	}
}

// NewAckError builds a failed acknowledgement.
func NewAckError(cmd CommandMessage, accessoryID, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID:   cmd.ID,
		Timestamp:   time.Now().UTC(),
		AccessoryID: accessoryID,
		Status:      status,
		Error:       &AckError{Code: code, Message: message},
	}
}

// NewStateMessage builds a state message.
func NewStateMessage(accessoryID string, on bool, source string, at time.Time) StateMessage {
	return StateMessage{
		AccessoryID: accessoryID,
		Timestamp:   at.UTC(),
		On:          on,
		Source:      source,
	}
}

// NewErrorResponse builds a failed response.
func NewErrorResponse(requestID, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}

// ensureCommandID fills in a command ID so every ack can be correlated.
func ensureCommandID(cmd *CommandMessage) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
}
