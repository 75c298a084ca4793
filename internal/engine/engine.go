package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roomlink-io/roomlink/internal/infrastructure/mqtt"
	"github.com/roomlink-io/roomlink/internal/policy"
	"github.com/roomlink-io/roomlink/internal/state"
)

// remoteSyncTimeout bounds each replication call so a slow remote store
// cannot stall the message-delivery loop.
const remoteSyncTimeout = 5 * time.Second

// Remote store paths for the mirrored documents.
const (
	pathDevices     = "/devices"
	pathDoorLock    = "/devices/door_lock"
	pathRoomControl = "/devices/room_control"
)

// deviceStatusPath returns the remote path for a device's health document.
// The device ID is validated at decode time to be path-safe.
func deviceStatusPath(deviceID string) string {
	return pathDevices + "/" + deviceID + "/status"
}

// reservedDocumentID reports whether deviceID names one of the mirrored
// documents. Health fan-out for those IDs would land on
// /devices/door_lock/status, where the document keeps its scalar lock
// status; the patch would silently turn that field into an object.
func reservedDocumentID(deviceID string) bool {
	return deviceID == "door_lock" || deviceID == "room_control"
}

// Bus is the messaging surface the engine needs: publish one message,
// subscribe one handler per topic. Satisfied by *mqtt.Client.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// RemoteStore is the hierarchical document store the mirror replicates to.
// Satisfied by *firebase.Client.
type RemoteStore interface {
	Read(ctx context.Context, path string) (json.RawMessage, error)
	Overwrite(ctx context.Context, path string, value any) error
	PartialUpdate(ctx context.Context, path string, fields map[string]any) error
}

// Telemetry is an optional time-series sink for sensor readings and
// access decisions. Satisfied by *influxdb.Client.
type Telemetry interface {
	WriteEnvironment(deviceID string, temperature, humidity *float64)
	WriteAccessEvent(deviceID, tag string, granted bool)
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the dependencies required to construct an Engine.
type Options struct {
	Policy *policy.Store
	Mirror *state.Mirror
	Bus    Bus
	Remote RemoteStore

	// Telemetry is optional; nil disables time-series recording.
	Telemetry Telemetry

	// Logger is optional; nil discards log output.
	Logger Logger

	// QoS is the quality-of-service level for subscriptions and publishes.
	QoS byte
}

// Engine is the access-control and reconciliation core.
//
// It is the sole writer of the device mirror. Inbound handlers run one at
// a time under mu; the facade methods (Snapshot, SubmitLightCommand) are
// safe to call concurrently from other goroutines.
type Engine struct {
	policy    *policy.Store
	mirror    *state.Mirror
	bus       Bus
	remote    RemoteStore
	telemetry Telemetry
	logger    Logger
	qos       byte
	topics    mqtt.Topics

	// mu serialises inbound handler execution (single-writer discipline).
	mu sync.Mutex

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// New creates an Engine with the given dependencies.
//
// Returns an error if a required dependency is missing. The engine does
// not subscribe to any topic until Start is called.
func New(opts Options) (*Engine, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("engine: policy store is required")
	}
	if opts.Mirror == nil {
		return nil, fmt.Errorf("engine: device mirror is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("engine: bus is required")
	}
	if opts.Remote == nil {
		return nil, fmt.Errorf("engine: remote store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Engine{
		policy:    opts.Policy,
		mirror:    opts.Mirror,
		bus:       opts.Bus,
		remote:    opts.Remote,
		telemetry: opts.Telemetry,
		logger:    logger,
		qos:       opts.QoS,
		now:       time.Now,
	}, nil
}

// Start subscribes the engine's handlers to the fixed inbound topic set.
//
// Returns:
//   - error: If any subscription fails; in that case no handler is
//     partially active on a best-effort basis (the caller should treat
//     this as fatal at startup).
func (e *Engine) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{e.topics.DoorRequest(), e.handleDoorRequest},
		{e.topics.RoomSensor(), e.handleRoomSensor},
		{e.topics.DeviceStatus(), e.handleDeviceStatus},
		{e.topics.LightStatus(), e.handleLightStatus},
	}

	for _, s := range subs {
		if err := e.bus.Subscribe(s.topic, e.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
		e.logger.Debug("subscribed", "topic", s.topic)
	}

	e.logger.Info("engine started", "topics", len(subs), "authorized_tags", e.policy.Size())
	return nil
}

// handleDoorRequest processes an identity-tag scan and replies with the
// grant/deny decision the door actuates on.
//
// The decision is a pure function of (normalised tag, policy set): every
// scan is evaluated independently, with no lockout or attempt counting.
func (e *Engine) handleDoorRequest(_ string, payload []byte) error {
	ev, err := decodeScanEvent(payload)
	if err != nil {
		return err
	}

	tag := policy.Normalize(ev.TagID)
	if tag == "" {
		e.logger.Warn("scan with empty tag discarded", "device_id", ev.DeviceID)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	granted := e.policy.Authorized(tag)

	if granted {
		ts := e.mirror.ApplyGrant(tag, now)
		e.logger.Info("access granted", "tag_id", tag, "device_id", ev.DeviceID)

		e.replicate(pathDoorLock, map[string]any{
			"status":      string(state.LockStatusUnlocked),
			"last_userid": tag,
			"updated_at":  ts,
		})
		e.replicate(pathRoomControl, map[string]any{
			"last_userid": tag,
			"updated_at":  ts,
		})
	} else {
		ts := e.mirror.RecordDeniedAttempt(tag, now)
		e.logger.Info("access denied", "tag_id", tag, "device_id", ev.DeviceID)

		// Only the attempt record goes remote; the door document's live
		// state (status, last_userid) is untouched by a failed scan.
		e.replicate(pathDoorLock, map[string]any{
			"last_attempt":    tag,
			"last_attempt_at": ts,
			"updated_at":      ts,
		})
	}

	if e.telemetry != nil {
		e.telemetry.WriteAccessEvent(ev.DeviceID, tag, granted)
	}

	// The response goes out regardless of replication outcome: the door
	// must not stay shut because the remote store is unreachable.
	e.publishScanResponse(ScanResponse{
		Access:    accessString(granted),
		TagID:     tag,
		DeviceID:  ev.DeviceID,
		Timestamp: now,
	})

	return nil
}

// handleRoomSensor processes a temperature/humidity report.
// A report with neither field present is a no-op.
func (e *Engine) handleRoomSensor(_ string, payload []byte) error {
	rep, err := decodeSensorReport(payload)
	if err != nil {
		return err
	}

	if rep.Temperature == nil && rep.Humidity == nil {
		e.logger.Debug("sensor report with no readings ignored", "device_id", rep.DeviceID)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.mirror.ApplySensorReport(rep.DeviceID, rep.Temperature, rep.Humidity, e.now().Unix())

	fields := map[string]any{
		"updated_at": ts,
	}
	if rep.Temperature != nil {
		fields["temperature"] = *rep.Temperature
	}
	if rep.Humidity != nil {
		fields["humidity"] = *rep.Humidity
	}
	if rep.DeviceID != "" {
		fields["device_id"] = rep.DeviceID
	}
	e.replicate(pathRoomControl, fields)

	if e.telemetry != nil {
		e.telemetry.WriteEnvironment(rep.DeviceID, rep.Temperature, rep.Humidity)
	}

	e.logger.Debug("sensor report applied",
		"device_id", rep.DeviceID,
		"has_temperature", rep.Temperature != nil,
		"has_humidity", rep.Humidity != nil,
	)
	return nil
}

// handleDeviceStatus records a device health report and fans it out to the
// device's own remote status document.
func (e *Engine) handleDeviceStatus(_ string, payload []byte) error {
	rep, err := decodeStatusReport(payload)
	if err != nil {
		return err
	}

	online := rep.Status == "online"

	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.mirror.UpdateDeviceStatus(state.DeviceStatus{
		DeviceID:         rep.DeviceID,
		Online:           online,
		WiFiRSSI:         rep.WiFiRSSI,
		NFCAvailable:     rep.NFCAvailable,
		DisplayAvailable: rep.DisplayAvailable,
		UptimeSeconds:    rep.Uptime,
	}, e.now().Unix())

	// Health for the mirrored document IDs stays local: its fan-out path
	// collides with the door document's scalar status field.
	if reservedDocumentID(rep.DeviceID) {
		e.logger.Warn("device health kept local for reserved document ID", "device_id", rep.DeviceID)
	} else {
		fields := map[string]any{
			"online":    online,
			"last_seen": ts,
		}
		if rep.WiFiRSSI != nil {
			fields["wifi_rssi"] = *rep.WiFiRSSI
		}
		if rep.NFCAvailable != nil {
			fields["nfc_available"] = *rep.NFCAvailable
		}
		if rep.DisplayAvailable != nil {
			fields["display_available"] = *rep.DisplayAvailable
		}
		if rep.Uptime != nil {
			fields["uptime"] = *rep.Uptime
		}
		e.replicate(deviceStatusPath(rep.DeviceID), fields)
	}

	e.logger.Debug("device status recorded", "device_id", rep.DeviceID, "online", online)
	return nil
}

// handleLightStatus processes the light device reporting its mode.
func (e *Engine) handleLightStatus(_ string, payload []byte) error {
	rep, err := decodeLightReport(payload)
	if err != nil {
		return err
	}

	if rep.Mode == "" {
		e.logger.Debug("light report without mode ignored")
		return nil
	}
	if !state.ValidLightMode(rep.Mode) {
		return fmt.Errorf("%w: light report: unknown mode %q", ErrMalformedPayload, rep.Mode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.mirror.SetLightMode(state.LightMode(rep.Mode), e.now().Unix())

	e.replicate(pathRoomControl, map[string]any{
		"light_mode": rep.Mode,
		"updated_at": ts,
	})

	e.logger.Debug("light mode updated", "mode", rep.Mode)
	return nil
}

// replicate merges fields into the remote document at path, best-effort.
//
// Failure is logged and otherwise ignored: the in-memory mirror stays
// authoritative, nothing retries, and the delivery loop moves on. The
// bounded timeout keeps a dead remote from blocking message handling.
func (e *Engine) replicate(path string, fields map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteSyncTimeout)
	defer cancel()

	if err := e.remote.PartialUpdate(ctx, path, fields); err != nil {
		e.logger.Warn("remote sync failed", "path", path, "error", err)
	}
}

// publishScanResponse sends the grant/deny reply, fire-and-forget.
func (e *Engine) publishScanResponse(resp ScanResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		e.logger.Error("encoding scan response", "error", err)
		return
	}
	if err := e.bus.Publish(e.topics.DoorResponse(), payload, e.qos, false); err != nil {
		e.logger.Warn("publishing scan response failed", "error", err)
	}
}

// accessString maps the decision to the wire value.
func accessString(granted bool) string {
	if granted {
		return AccessGranted
	}
	return AccessDenied
}
