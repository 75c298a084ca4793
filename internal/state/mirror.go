// Package state holds the authoritative in-memory device mirror.
//
// The Mirror is the single source of truth for the running process: the
// remote store is a best-effort replica, and the physical devices only
// learn of decisions through bus messages. All mutation goes through the
// access engine (single-writer discipline); everything else reads
// point-in-time snapshots.
//
// Thread Safety: all methods are safe for concurrent use. Mutators take
// the write lock; Snapshot takes the read lock and returns deep copies.
package state

import (
	"sync"
	"time"
)

// Seed is the static configuration the Mirror starts from.
type Seed struct {
	DoorStatus LockStatus
	LightMode  LightMode
}

// Mirror is the in-memory device-state record set.
type Mirror struct {
	mu      sync.RWMutex
	door    DoorLock
	room    RoomControl
	devices map[string]DeviceStatus

	// lastStamp enforces monotonically non-decreasing updated_at values
	// even if the wall clock steps backwards.
	lastStamp int64
}

// NewMirror creates a Mirror seeded from configuration.
//
// Unset seed fields fall back to the safe defaults: door locked, light off.
func NewMirror(seed Seed) *Mirror {
	doorStatus := seed.DoorStatus
	if doorStatus == "" {
		doorStatus = LockStatusLocked
	}
	lightMode := seed.LightMode
	if lightMode == "" {
		lightMode = LightModeOff
	}

	now := time.Now().Unix()
	return &Mirror{
		door: DoorLock{
			DeviceID:  "door_lock",
			Status:    doorStatus,
			UpdatedAt: now,
		},
		room: RoomControl{
			DeviceID:  "room_control",
			LightMode: lightMode,
			UpdatedAt: now,
		},
		devices:   make(map[string]DeviceStatus),
		lastStamp: now,
	}
}

// stamp clamps now to be non-decreasing across mutations.
// Must be called with the write lock held.
func (m *Mirror) stamp(now int64) int64 {
	if now < m.lastStamp {
		now = m.lastStamp
	}
	m.lastStamp = now
	return now
}

// ApplyGrant records a successful scan: the door unlocks and the tag
// becomes both the door's last user and the room's current occupant.
// It returns the effective updated_at stamp.
func (m *Mirror) ApplyGrant(tag string, now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.stamp(now)
	m.door.Status = LockStatusUnlocked
	m.door.LastUserID = tag
	m.door.UpdatedAt = ts
	m.room.LastUserID = tag
	m.room.UpdatedAt = ts
	return ts
}

// RecordDeniedAttempt records an unauthorized scan on the door record.
// The lock status, last user and occupant are untouched.
func (m *Mirror) RecordDeniedAttempt(tag string, now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.stamp(now)
	m.door.LastAttempt = tag
	m.door.LastAttemptAt = ts
	m.door.UpdatedAt = ts
	return ts
}

// ApplySensorReport overwrites the environment fields that are present in
// the report, leaving absent fields unchanged, and records the reporting
// device as the room's sensor.
func (m *Mirror) ApplySensorReport(deviceID string, temperature, humidity *float64, now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.stamp(now)
	if temperature != nil {
		v := *temperature
		m.room.Temperature = &v
	}
	if humidity != nil {
		v := *humidity
		m.room.Humidity = &v
	}
	if deviceID != "" {
		m.room.DeviceID = deviceID
	}
	m.room.UpdatedAt = ts
	return ts
}

// SetLightMode overwrites the room's light mode as reported by the device.
func (m *Mirror) SetLightMode(mode LightMode, now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.stamp(now)
	m.room.LightMode = mode
	m.room.UpdatedAt = ts
	return ts
}

// UpdateDeviceStatus upserts the per-device health record for deviceID.
func (m *Mirror) UpdateDeviceStatus(status DeviceStatus, now int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.stamp(now)
	status.LastSeen = ts
	m.devices[status.DeviceID] = status
	return ts
}

// Occupant returns the current occupant tag, or "" if nobody has been
// granted access yet.
func (m *Mirror) Occupant() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room.LastUserID
}

// Snapshot returns a deep copy of the full mirror captured at now.
func (m *Mirror) Snapshot(now int64) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		DoorLock:    m.door,
		RoomControl: m.room,
		CapturedAt:  now,
	}
	snap.RoomControl.Temperature = copyFloat(m.room.Temperature)
	snap.RoomControl.Humidity = copyFloat(m.room.Humidity)

	if len(m.devices) > 0 {
		snap.Devices = make(map[string]DeviceStatus, len(m.devices))
		for id, d := range m.devices {
			d.WiFiRSSI = copyInt(d.WiFiRSSI)
			d.NFCAvailable = copyBool(d.NFCAvailable)
			d.DisplayAvailable = copyBool(d.DisplayAvailable)
			d.UptimeSeconds = copyInt64(d.UptimeSeconds)
			snap.Devices[id] = d
		}
	}
	return snap
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
