// Package miio implements the outlet device client as a relay over MQTT.
//
// The bridge does not speak the miIO UDP protocol itself. A gateway process
// on the plug's network does (handshake, AES framing, token auth) and
// exposes a JSON request/response pair of topics per device:
//
//	{prefix}/{address}/request   bridge → gateway
//	{prefix}/{address}/response  gateway → bridge
//
// Requests mirror miIO JSON-RPC: {"id", "method", "params", "token"}.
// Responses carry the same id with either "result" or "error". The client
// correlates them by id and honours the caller's context deadline.
//
// Constructing a Client never fails. The response topic is subscribed on the
// first call, so a malformed address only surfaces as an error from Get or Set.
package miio
