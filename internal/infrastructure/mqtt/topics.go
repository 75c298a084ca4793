package mqtt

import "fmt"

// Topic prefixes for roomlink MQTT traffic.
//
// Device topics use the scheme the ESP firmware expects:
// esp/{device}/{channel}. System topics carry the broker's own status.
const (
	// TopicPrefixDevice is the base for all device topics.
	TopicPrefixDevice = "esp"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "roomlink/system"
)

// Topics provides builders for roomlink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	respTopic := topics.DoorResponse()
//	// Returns: "esp/door_lock/response"
type Topics struct{}

// =============================================================================
// Inbound Topics (subscribed at startup)
// =============================================================================

// DoorRequest returns the topic carrying identity-tag scan events from the
// door lock device.
//
// Topic: esp/door_lock/request
func (Topics) DoorRequest() string {
	return fmt.Sprintf("%s/door_lock/request", TopicPrefixDevice)
}

// RoomSensor returns the topic carrying temperature/humidity reports.
//
// Topic: esp/room/sensor
func (Topics) RoomSensor() string {
	return fmt.Sprintf("%s/room/sensor", TopicPrefixDevice)
}

// DeviceStatus returns the topic carrying per-device health reports.
//
// Topic: esp/device/status
func (Topics) DeviceStatus() string {
	return fmt.Sprintf("%s/device/status", TopicPrefixDevice)
}

// LightStatus returns the topic carrying light-mode reports from the light
// device.
//
// Topic: esp/light/status
func (Topics) LightStatus() string {
	return fmt.Sprintf("%s/light/status", TopicPrefixDevice)
}

// =============================================================================
// Outbound Topics (published by the engine)
// =============================================================================

// DoorResponse returns the topic for grant/deny replies to the door lock.
// The door actuates only on a granted response received here.
//
// Topic: esp/door_lock/response
func (Topics) DoorResponse() string {
	return fmt.Sprintf("%s/door_lock/response", TopicPrefixDevice)
}

// LightCommand returns the topic for mode-change commands to the light.
//
// Topic: esp/light/cmd
func (Topics) LightCommand() string {
	return fmt.Sprintf("%s/light/cmd", TopicPrefixDevice)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the broker's own status topic (LWT target).
//
// Topic: roomlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Inbound returns the fixed set of topics the engine subscribes to.
func (t Topics) Inbound() []string {
	return []string{
		t.DoorRequest(),
		t.RoomSensor(),
		t.DeviceStatus(),
		t.LightStatus(),
	}
}
