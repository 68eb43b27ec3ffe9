// Package bridge exposes the served accessory on MQTT.
//
// It is the MQTT counterpart of the HomeKit binding: commands arriving on
// the accessory's command topic are dispatched through the accessory's
// characteristic table, and every state change recorded by the history
// recorder is republished as a retained state message.
//
//	miplug/command/outlet/{id}           on | off | toggle
//	miplug/ack/outlet/{id}               command acknowledgements
//	miplug/state/outlet/{id}             retained power state
//	miplug/request/outlet/{request_id}   read_state
//	miplug/response/outlet/{request_id}  request results
//	miplug/health/outlet                 retained health, every 30s
//
// All exported types are safe for concurrent use.
package bridge
