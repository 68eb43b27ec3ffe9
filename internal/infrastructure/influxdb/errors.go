package influxdb

import "errors"

var (
	// ErrNotConnected means the client was closed or never connected.
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
)
