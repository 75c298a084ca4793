package state

// LockStatus is the door lock position as last reported or commanded.
type LockStatus string

// Valid lock statuses.
const (
	LockStatusLocked   LockStatus = "locked"
	LockStatusUnlocked LockStatus = "unlocked"
)

// LightMode is the dimming level of the room light.
type LightMode string

// Valid light modes.
const (
	LightModeOff  LightMode = "off"
	LightModeLow  LightMode = "low"
	LightModeMed  LightMode = "med"
	LightModeHigh LightMode = "high"
)

// ValidLightMode reports whether mode is one of the recognised levels.
func ValidLightMode(mode string) bool {
	switch LightMode(mode) {
	case LightModeOff, LightModeLow, LightModeMed, LightModeHigh:
		return true
	}
	return false
}

// DoorLock is the last-known state of the door lock device.
//
// JSON field names match the remote mirror document at /devices/door_lock.
// Timestamps are Unix seconds; zero means "never".
type DoorLock struct {
	DeviceID      string     `json:"device_id"`
	Status        LockStatus `json:"status"`
	LastUserID    string     `json:"last_userid,omitempty"`
	LastAttempt   string     `json:"last_attempt,omitempty"`
	LastAttemptAt int64      `json:"last_attempt_at,omitempty"`
	UpdatedAt     int64      `json:"updated_at"`
}

// RoomControl is the last-known state of the room environment and light.
//
// LastUserID is the current occupant: the tag last granted access. It gates
// light-mode command submission and is written only by the access engine.
// DeviceID is the identifier of the last sensor that reported.
type RoomControl struct {
	DeviceID    string    `json:"device_id"`
	LastUserID  string    `json:"last_userid,omitempty"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	LightMode   LightMode `json:"light_mode"`
	UpdatedAt   int64     `json:"updated_at"`
}

// DeviceStatus is a per-device health record, created on demand the first
// time a device reports on the status topic.
type DeviceStatus struct {
	DeviceID         string `json:"device_id"`
	Online           bool   `json:"online"`
	WiFiRSSI         *int   `json:"wifi_rssi,omitempty"`
	NFCAvailable     *bool  `json:"nfc_available,omitempty"`
	DisplayAvailable *bool  `json:"display_available,omitempty"`
	UptimeSeconds    *int64 `json:"uptime,omitempty"`
	LastSeen         int64  `json:"last_seen"`
}

// Snapshot is a point-in-time deep copy of the full Mirror, safe to hold
// and read while the engine continues mutating live state.
type Snapshot struct {
	DoorLock    DoorLock                `json:"door_lock"`
	RoomControl RoomControl             `json:"room_control"`
	Devices     map[string]DeviceStatus `json:"devices,omitempty"`
	CapturedAt  int64                   `json:"captured_at"`
}
