// Package api serves the bridge's HTTP surface: accessory inspection,
// power state reads and writes, state history, Prometheus metrics and a
// WebSocket feed of state changes.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Reads are open. Writes require a bearer token from POST /api/v1/auth/token.
package api
