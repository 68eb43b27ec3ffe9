// Package homekit publishes the served accessory as a HomeKit outlet.
//
// Reads and writes of the HAP On characteristic are dispatched through the
// accessory's characteristic table, so HomeKit controllers drive exactly the
// same handlers as the MQTT and HTTP surfaces. Changes recorded by those
// surfaces are pushed back to paired controllers as value notifications.
package homekit
