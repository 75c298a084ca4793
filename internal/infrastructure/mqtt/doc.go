// Package mqtt provides MQTT client connectivity for roomlink.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with re-subscription on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the device bus: ESP32 devices (door lock, room sensor, light)
// publish events and receive commands through the broker, decoupled from
// the broker process itself.
//
//	ESP devices ↔ MQTT Broker ↔ roomlink
//
// # Security Considerations
//
//   - TLS is available for deployments beyond a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to door scan events
//	err = client.Subscribe(mqtt.Topics{}.DoorRequest(), 0,
//	    func(topic string, payload []byte) error {
//	        return engine.HandleScan(topic, payload)
//	    })
//
//	// Publish a grant response
//	client.Publish(mqtt.Topics{}.DoorResponse(), []byte(`{"access":"granted"}`), 0, false)
package mqtt
