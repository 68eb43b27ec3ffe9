// Package outlet implements the MiSmartPlug accessory: one Xiaomi smart
// plug exposed as an on/off switch.
//
// The Adapter owns an immutable Identity (name, IPv4 address, 32-hex token)
// and a DeviceClient built from it. Identity is validated once in New. If it
// is invalid the accessory still starts, but every request re-logs the
// validation errors and never reaches the device.
//
// Read and write requests arrive through the accessory dispatch table
// (HandleGet / HandleSet on the Switch service's On characteristic). Each
// device round trip is bounded by the configured request timeout. Device
// failures are logged and returned wrapped in ErrDeviceCommunication for
// both reads and writes.
//
// The device's own network protocol lives behind DeviceClient; see package
// miio for the MQTT relay implementation used in production.
package outlet
