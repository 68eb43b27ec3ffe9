// Package history keeps a local record of outlet power state changes.
//
// Every binding that reads or writes the On characteristic reports the
// resulting state to a Recorder. The Recorder drops repeats, persists real
// changes to SQLite, mirrors them to InfluxDB when configured, and notifies
// in-process listeners such as the WebSocket hub and the MQTT state
// publisher.
package history
