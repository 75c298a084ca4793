package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (256KB).
// Device payloads are a few hundred bytes; anything near this limit is a
// malfunctioning or hostile publisher.
const maxPayloadSize = 256 << 10

// Publish sends a message to the specified MQTT topic.
//
// Outbound messages are at-most-once from the engine's perspective:
// a failed publish is reported to the caller, logged, and not retried.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "esp/door_lock/response")
//   - payload: The message payload (typically JSON)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	topic := mqtt.Topics{}.DoorResponse()
//	err := client.Publish(topic, []byte(`{"access":"granted"}`), 0, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Publish with timeout
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
