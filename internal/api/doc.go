// Package api implements the HTTP REST API and WebSocket server for roomlink.
//
// This package provides:
//   - REST endpoints for the room state snapshot and light commands
//   - WebSocket endpoint pushing periodic state snapshots
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The API server is a read-mostly window onto the in-memory device mirror.
// The one write path, the light command, is occupancy-gated and delegates
// to the access engine, which publishes the command on the device bus.
// The mirror itself is only ever mutated by inbound device messages, so
// the API never writes state directly.
package api
