package engine

import (
	"encoding/json"
	"fmt"
)

// Inbound and outbound message shapes, one per topic. Required fields are
// validated by the decode helpers; decoding fails closed (the handler
// discards the message) rather than passing partial data onward.

// ScanEvent is an identity-tag scan from the door lock device.
//
// Topic: esp/door_lock/request
type ScanEvent struct {
	DeviceID  string `json:"device_id"`
	TagID     string `json:"tag_id"`
	Action    string `json:"action,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ScanResponse is the grant/deny reply the door lock actuates on.
//
// Topic: esp/door_lock/response
type ScanResponse struct {
	Access    string `json:"access"`
	TagID     string `json:"tag_id"`
	DeviceID  string `json:"device_id"`
	Timestamp int64  `json:"timestamp"`
}

// Access decision values carried in ScanResponse.
const (
	AccessGranted = "granted"
	AccessDenied  = "denied"
)

// SensorReport is a temperature/humidity reading from the room sensor.
// Both fields are optional; a report carrying neither is a no-op.
//
// Topic: esp/room/sensor
type SensorReport struct {
	DeviceID    string   `json:"device_id"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
}

// StatusReport is a periodic health report from any device.
//
// Topic: esp/device/status
type StatusReport struct {
	DeviceID         string `json:"device_id"`
	Status           string `json:"status"`
	WiFiRSSI         *int   `json:"wifi_rssi,omitempty"`
	NFCAvailable     *bool  `json:"nfc_available,omitempty"`
	DisplayAvailable *bool  `json:"display_available,omitempty"`
	Uptime           *int64 `json:"uptime,omitempty"`
}

// LightReport is the light device reporting its current mode.
//
// Topic: esp/light/status
type LightReport struct {
	DeviceID string `json:"device_id,omitempty"`
	Mode     string `json:"mode"`
}

// LightCommand is a mode-change command sent to the light device on
// behalf of the current occupant.
//
// Topic: esp/light/cmd
type LightCommand struct {
	DeviceID    string `json:"device_id"`
	Mode        string `json:"mode"`
	RequestedBy string `json:"requested_by"`
	RequestID   string `json:"request_id"`
}

// decodeScanEvent parses a scan event payload.
// device_id defaults to "door_lock" when omitted, matching the firmware's
// single-door deployment. Tag validation happens in the handler (an empty
// tag is a logged discard, not a decode failure).
func decodeScanEvent(payload []byte) (ScanEvent, error) {
	var ev ScanEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ScanEvent{}, fmt.Errorf("%w: scan event: %w", ErrMalformedPayload, err)
	}
	if ev.DeviceID == "" {
		ev.DeviceID = "door_lock"
	}
	return ev, nil
}

// decodeSensorReport parses an environment sensor payload.
func decodeSensorReport(payload []byte) (SensorReport, error) {
	var rep SensorReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return SensorReport{}, fmt.Errorf("%w: sensor report: %w", ErrMalformedPayload, err)
	}
	return rep, nil
}

// decodeStatusReport parses a device status payload.
// device_id and status are required; without them there is no document to
// address and no online/offline fact to record.
func decodeStatusReport(payload []byte) (StatusReport, error) {
	var rep StatusReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return StatusReport{}, fmt.Errorf("%w: status report: %w", ErrMalformedPayload, err)
	}
	if rep.DeviceID == "" {
		return StatusReport{}, fmt.Errorf("%w: status report: device_id is required", ErrMalformedPayload)
	}
	if rep.Status == "" {
		return StatusReport{}, fmt.Errorf("%w: status report: status is required", ErrMalformedPayload)
	}
	if !validDeviceID(rep.DeviceID) {
		return StatusReport{}, fmt.Errorf("%w: status report: invalid device_id %q", ErrMalformedPayload, rep.DeviceID)
	}
	return rep, nil
}

// decodeLightReport parses a light mode payload.
func decodeLightReport(payload []byte) (LightReport, error) {
	var rep LightReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return LightReport{}, fmt.Errorf("%w: light report: %w", ErrMalformedPayload, err)
	}
	return rep, nil
}

// validDeviceID restricts device identifiers to characters that are safe
// inside a remote store path segment.
func validDeviceID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
