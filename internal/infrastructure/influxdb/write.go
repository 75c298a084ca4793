package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEnvironment records a temperature/humidity reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Nil fields are omitted so a temperature-only report does not record a
// phantom humidity of zero.
//
// Parameters:
//   - deviceID: The reporting sensor's identifier
//   - temperature: Degrees Celsius, nil if absent from the report
//   - humidity: Relative humidity percent, nil if absent from the report
//
// Example:
//
//	client.WriteEnvironment("room-sensor-01", &temp, &hum)
func (c *Client) WriteEnvironment(deviceID string, temperature, humidity *float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	if humidity != nil {
		fields["humidity"] = *humidity
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"environment",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAccessEvent records the outcome of an identity-tag scan.
//
// Parameters:
//   - deviceID: The scanning device's identifier
//   - tag: The normalised identity tag presented
//   - granted: Whether access was granted
func (c *Client) WriteAccessEvent(deviceID, tag string, granted bool) {
	if !c.IsConnected() {
		return
	}

	result := "denied"
	if granted {
		result = "granted"
	}

	point := write.NewPoint(
		"access_event",
		map[string]string{
			"device_id": deviceID,
			"result":    result,
		},
		map[string]interface{}{
			"tag_id": tag,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
