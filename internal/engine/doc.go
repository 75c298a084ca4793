// Package engine is the event-ingestion and reconciliation core of roomlink.
//
// The engine receives inbound device messages from the MQTT bus, classifies
// them by topic, applies the access-control decision for identity-tag
// scans, mutates the shared in-memory device mirror, replicates each
// mutation to the remote store, and publishes the reply the device is
// waiting on. It is the only writer of the mirror and the only component
// whose correctness reaches a physical actuator (the door lock).
//
// # Topic handling
//
//	esp/door_lock/request  → scan decision → esp/door_lock/response
//	esp/room/sensor        → environment update
//	esp/device/status      → per-device health fan-out
//	esp/light/status       → light mode update
//
// # Failure model
//
// A malformed message is logged and discarded; the delivery loop never
// stops for a bad payload. Remote replication is best-effort: a failed
// sync is logged, the in-memory state stands, and the outbound response
// is published regardless.
//
// # Concurrency
//
// Handlers execute one at a time under an engine-level mutex, giving the
// mirror a strict single-writer discipline. The status/command facade
// (Snapshot, SubmitLightCommand) may be called concurrently from the HTTP
// serving context.
//
// # Usage
//
//	eng, err := engine.New(engine.Options{
//	    Policy: policyStore,
//	    Mirror: mirror,
//	    Bus:    mqttClient,
//	    Remote: firebaseClient,
//	    Logger: log,
//	})
//	if err != nil {
//	    return err
//	}
//	eng.Bootstrap(ctx)   // first-run schema creation, best-effort
//	eng.Start()          // subscribe to inbound topics
package engine
