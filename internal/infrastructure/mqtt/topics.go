package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT hierarchy.
//
// Accessory topics use the flat scheme: miplug/{category}/{kind}/{id}
// where kind is the accessory kind ("outlet") and id is the accessory ID
// or a request ID.
const (
	// TopicPrefix is the root of every bridge topic.
	TopicPrefix = "miplug"

	// TopicPrefixSystem is the base for process-level status topics.
	TopicPrefixSystem = "miplug/system"
)

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("outlet", "desk-lamp")
//	// Returns: "miplug/state/outlet/desk-lamp"
type Topics struct{}

// State returns the retained state topic for an accessory.
//
// Example: miplug/state/outlet/desk-lamp
func (Topics) State(kind, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, kind, id)
}

// Command returns the topic accepting commands for an accessory.
//
// Example: miplug/command/outlet/desk-lamp
func (Topics) Command(kind, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, kind, id)
}

// Ack returns the topic for command acknowledgements.
//
// Example: miplug/ack/outlet/desk-lamp
func (Topics) Ack(kind, id string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, kind, id)
}

// Request returns the topic for a read request.
//
// Example: miplug/request/outlet/req-abc123
func (Topics) Request(kind, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, kind, requestID)
}

// Response returns the topic for a read response.
//
// Example: miplug/response/outlet/req-abc123
func (Topics) Response(kind, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, kind, requestID)
}

// Health returns the retained health topic for an accessory kind.
//
// Example: miplug/health/outlet
func (Topics) Health(kind string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, kind)
}

// SystemStatus returns the process status topic used for the LWT.
//
// Example: miplug/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllRequests returns a pattern matching every read request for a kind.
//
// Pattern: miplug/request/outlet/+
func (Topics) AllRequests(kind string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, kind)
}

// AllStates returns a pattern matching every accessory state topic.
//
// Pattern: miplug/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}
