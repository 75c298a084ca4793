// Package influxdb provides optional time-series telemetry for roomlink.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking, batched point writes
//   - Async write error reporting via callback
//   - Health monitoring
//
// # Measurements
//
//   - environment: temperature/humidity readings, tagged by device_id
//   - access_event: scan outcomes, tagged by device_id and result
//
// Telemetry is best-effort and entirely optional; the broker's behaviour
// does not depend on it. When disabled in config, Connect returns
// ErrDisabled and the engine runs without a telemetry sink.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteEnvironment("room-sensor-01", &temp, &hum)
//	client.WriteAccessEvent("door_lock", "A1B2C3D4", true)
package influxdb
