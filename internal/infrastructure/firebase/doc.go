// Package firebase replicates the device mirror to a Firebase Realtime
// Database over its REST interface.
//
// This package manages:
//   - Reading a subtree (startup schema-bootstrap check)
//   - Overwriting a subtree (first-run schema creation)
//   - Partial top-level merges (every subsequent mutation)
//
// # Remote layout
//
//	/devices/door_lock            — door lock document
//	/devices/room_control         — room environment/light document
//	/devices/{device_id}/status   — per-device health documents
//
// # Failure model
//
// Replication is best-effort. Every call is bounded by the configured
// timeout and returns a structured error on failure; callers log it and
// carry on. Nothing retries, nothing queues: a failed replication is lost
// unless a later mutation to the same path succeeds. The in-memory mirror
// is the source of truth for the running process.
//
// # Usage
//
//	client, err := firebase.Connect(cfg.Firebase)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = client.PartialUpdate(ctx, "/devices/door_lock", map[string]any{
//	    "status":      "unlocked",
//	    "last_userid": "A1B2C3D4",
//	    "updated_at":  now,
//	})
package firebase
