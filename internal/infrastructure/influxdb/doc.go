// Package influxdb mirrors outlet state changes into an InfluxDB v2 bucket.
//
// It wraps influxdb-client-go v2 with non-blocking batched writes. The local
// SQLite history remains the source of truth; InfluxDB is an optional
// long-term sink for dashboards.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history stays local only
//	}
//	client.WriteOutletState("miplug", true, "homekit", time.Now())
//
// Write failures are delivered asynchronously through SetOnError.
package influxdb
