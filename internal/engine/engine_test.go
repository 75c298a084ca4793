package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roomlink-io/roomlink/internal/infrastructure/firebase"
	"github.com/roomlink-io/roomlink/internal/infrastructure/mqtt"
	"github.com/roomlink-io/roomlink/internal/policy"
	"github.com/roomlink-io/roomlink/internal/state"
)

type publishedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeBus struct {
	mu         sync.Mutex
	published  []publishedMsg
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, publishedMsg{topic, payload, qos, retained})
	return nil
}

func (b *fakeBus) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) messages(topic string) []publishedMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedMsg
	for _, m := range b.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type remoteCall struct {
	method string
	path   string
	fields map[string]any
	value  any
}

type fakeRemote struct {
	mu       sync.Mutex
	calls    []remoteCall
	readErr  error
	readBody json.RawMessage
	writeErr error
}

func (r *fakeRemote) Read(_ context.Context, path string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, remoteCall{method: "read", path: path})
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.readBody, nil
}

func (r *fakeRemote) Overwrite(_ context.Context, path string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, remoteCall{method: "overwrite", path: path, value: value})
	return r.writeErr
}

func (r *fakeRemote) PartialUpdate(_ context.Context, path string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, remoteCall{method: "patch", path: path, fields: fields})
	return r.writeErr
}

func (r *fakeRemote) patches(path string) []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []remoteCall
	for _, c := range r.calls {
		if c.method == "patch" && c.path == path {
			out = append(out, c)
		}
	}
	return out
}

type accessRecord struct {
	deviceID string
	tag      string
	granted  bool
}

type fakeTelemetry struct {
	mu     sync.Mutex
	env    []string
	access []accessRecord
}

func (t *fakeTelemetry) WriteEnvironment(deviceID string, _, _ *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.env = append(t.env, deviceID)
}

func (t *fakeTelemetry) WriteAccessEvent(deviceID, tag string, granted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access = append(t.access, accessRecord{deviceID, tag, granted})
}

const testNow = int64(1700000000)

func newTestEngine(t *testing.T) (*Engine, *fakeBus, *fakeRemote, *fakeTelemetry) {
	t.Helper()

	bus := newFakeBus()
	remote := &fakeRemote{}
	telemetry := &fakeTelemetry{}

	eng, err := New(Options{
		Policy:    policy.New([]string{"A1B2C3D4", "00DEAD42"}),
		Mirror:    state.NewMirror(state.Seed{}),
		Bus:       bus,
		Remote:    remote,
		Telemetry: telemetry,
		QoS:       1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	eng.now = func() time.Time { return time.Unix(testNow, 0) }
	return eng, bus, remote, telemetry
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatal("New() with no dependencies should fail")
	}
}

func TestStartSubscribesInboundTopics(t *testing.T) {
	eng, bus, _, _ := newTestEngine(t)

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, topic := range (mqtt.Topics{}).Inbound() {
		if _, ok := bus.handlers[topic]; !ok {
			t.Errorf("no handler subscribed for %s", topic)
		}
	}
}

func TestDoorRequestGranted(t *testing.T) {
	eng, bus, remote, telemetry := newTestEngine(t)

	// Lowercase scan of an authorized tag: normalisation makes it match.
	payload := []byte(`{"device_id":"door_lock","tag_id":"a1b2c3d4"}`)
	if err := eng.handleDoorRequest("", payload); err != nil {
		t.Fatalf("handleDoorRequest() error = %v", err)
	}

	msgs := bus.messages((mqtt.Topics{}).DoorResponse())
	if len(msgs) != 1 {
		t.Fatalf("published %d responses, want 1", len(msgs))
	}
	var resp ScanResponse
	if err := json.Unmarshal(msgs[0].payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Access != AccessGranted {
		t.Errorf("Access = %q, want %q", resp.Access, AccessGranted)
	}
	if resp.TagID != "A1B2C3D4" {
		t.Errorf("TagID = %q, want normalised form", resp.TagID)
	}
	if resp.Timestamp != testNow {
		t.Errorf("Timestamp = %d, want %d", resp.Timestamp, testNow)
	}

	snap := eng.Snapshot()
	if snap.DoorLock.Status != state.LockStatusUnlocked {
		t.Errorf("door status = %q, want unlocked", snap.DoorLock.Status)
	}
	if snap.DoorLock.LastUserID != "A1B2C3D4" {
		t.Errorf("door last_userid = %q, want A1B2C3D4", snap.DoorLock.LastUserID)
	}
	if snap.RoomControl.LastUserID != "A1B2C3D4" {
		t.Errorf("room last_userid = %q, want A1B2C3D4", snap.RoomControl.LastUserID)
	}

	doorPatches := remote.patches(pathDoorLock)
	if len(doorPatches) != 1 {
		t.Fatalf("door patches = %d, want 1", len(doorPatches))
	}
	if got := doorPatches[0].fields["status"]; got != "unlocked" {
		t.Errorf("patched status = %v, want unlocked", got)
	}
	if len(remote.patches(pathRoomControl)) != 1 {
		t.Error("room_control was not patched on grant")
	}

	if len(telemetry.access) != 1 || !telemetry.access[0].granted {
		t.Errorf("telemetry access records = %+v, want one granted", telemetry.access)
	}
}

func TestDoorRequestDenied(t *testing.T) {
	eng, bus, remote, telemetry := newTestEngine(t)

	payload := []byte(`{"device_id":"door_lock","tag_id":"FFFFFFFF"}`)
	if err := eng.handleDoorRequest("", payload); err != nil {
		t.Fatalf("handleDoorRequest() error = %v", err)
	}

	msgs := bus.messages((mqtt.Topics{}).DoorResponse())
	if len(msgs) != 1 {
		t.Fatalf("published %d responses, want 1", len(msgs))
	}
	var resp ScanResponse
	if err := json.Unmarshal(msgs[0].payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Access != AccessDenied {
		t.Errorf("Access = %q, want %q", resp.Access, AccessDenied)
	}

	snap := eng.Snapshot()
	if snap.DoorLock.Status != state.LockStatusLocked {
		t.Errorf("door status = %q, a denied scan must not unlock", snap.DoorLock.Status)
	}
	if snap.DoorLock.LastUserID != "" {
		t.Errorf("door last_userid = %q, want empty after deny", snap.DoorLock.LastUserID)
	}
	if snap.DoorLock.LastAttempt != "FFFFFFFF" {
		t.Errorf("last_attempt = %q, want FFFFFFFF", snap.DoorLock.LastAttempt)
	}

	doorPatches := remote.patches(pathDoorLock)
	if len(doorPatches) != 1 {
		t.Fatalf("door patches = %d, want 1", len(doorPatches))
	}
	if _, ok := doorPatches[0].fields["status"]; ok {
		t.Error("deny patch must not touch the door status")
	}
	if got := doorPatches[0].fields["last_attempt"]; got != "FFFFFFFF" {
		t.Errorf("patched last_attempt = %v, want FFFFFFFF", got)
	}
	if len(remote.patches(pathRoomControl)) != 0 {
		t.Error("room_control must not be patched on deny")
	}

	if len(telemetry.access) != 1 || telemetry.access[0].granted {
		t.Errorf("telemetry access records = %+v, want one denied", telemetry.access)
	}
}

func TestDoorRequestEmptyTagDiscarded(t *testing.T) {
	eng, bus, remote, _ := newTestEngine(t)

	for _, payload := range []string{`{"tag_id":""}`, `{"tag_id":"   "}`, `{}`} {
		if err := eng.handleDoorRequest("", []byte(payload)); err != nil {
			t.Errorf("payload %s: error = %v, want nil", payload, err)
		}
	}

	if n := len(bus.published); n != 0 {
		t.Errorf("published %d messages, empty scans must produce no response", n)
	}
	remote.mu.Lock()
	calls := len(remote.calls)
	remote.mu.Unlock()
	if calls != 0 {
		t.Errorf("remote calls = %d, empty scans must not replicate", calls)
	}
}

func TestDoorRequestMalformedPayload(t *testing.T) {
	eng, bus, _, _ := newTestEngine(t)

	err := eng.handleDoorRequest("", []byte(`{not json`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("error = %v, want ErrMalformedPayload", err)
	}
	if len(bus.published) != 0 {
		t.Error("malformed scan must not produce a response")
	}
}

func TestDoorRequestRemoteFailureDoesNotBlockResponse(t *testing.T) {
	eng, bus, remote, _ := newTestEngine(t)
	remote.writeErr = errors.New("remote store unreachable")

	payload := []byte(`{"tag_id":"A1B2C3D4"}`)
	if err := eng.handleDoorRequest("", payload); err != nil {
		t.Fatalf("handleDoorRequest() error = %v, remote failure must not surface", err)
	}

	msgs := bus.messages((mqtt.Topics{}).DoorResponse())
	if len(msgs) != 1 {
		t.Fatal("response must be published even when replication fails")
	}
	var resp ScanResponse
	if err := json.Unmarshal(msgs[0].payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Access != AccessGranted {
		t.Errorf("Access = %q, want granted regardless of remote outcome", resp.Access)
	}

	// The mirror mutation is not rolled back.
	if got := eng.Snapshot().DoorLock.Status; got != state.LockStatusUnlocked {
		t.Errorf("door status = %q, want unlocked despite remote failure", got)
	}
}

func TestRoomSensorPartialUpdate(t *testing.T) {
	eng, _, remote, telemetry := newTestEngine(t)

	both := []byte(`{"device_id":"room_control","temperature":21.5,"humidity":40.0}`)
	if err := eng.handleRoomSensor("", both); err != nil {
		t.Fatalf("handleRoomSensor() error = %v", err)
	}

	// Temperature-only report must leave humidity untouched.
	tempOnly := []byte(`{"device_id":"room_control","temperature":22.0}`)
	if err := eng.handleRoomSensor("", tempOnly); err != nil {
		t.Fatalf("handleRoomSensor() error = %v", err)
	}

	snap := eng.Snapshot()
	if snap.RoomControl.Temperature == nil || *snap.RoomControl.Temperature != 22.0 {
		t.Errorf("temperature = %v, want 22.0", snap.RoomControl.Temperature)
	}
	if snap.RoomControl.Humidity == nil || *snap.RoomControl.Humidity != 40.0 {
		t.Errorf("humidity = %v, want 40.0 preserved from earlier report", snap.RoomControl.Humidity)
	}

	patches := remote.patches(pathRoomControl)
	if len(patches) != 2 {
		t.Fatalf("room patches = %d, want 2", len(patches))
	}
	if _, ok := patches[1].fields["humidity"]; ok {
		t.Error("temperature-only report must not patch humidity remotely")
	}
	if got := patches[1].fields["temperature"]; got != 22.0 {
		t.Errorf("patched temperature = %v, want 22.0", got)
	}

	if len(telemetry.env) != 2 {
		t.Errorf("telemetry environment writes = %d, want 2", len(telemetry.env))
	}
}

func TestRoomSensorEmptyReportIgnored(t *testing.T) {
	eng, _, remote, telemetry := newTestEngine(t)

	if err := eng.handleRoomSensor("", []byte(`{"device_id":"room_control"}`)); err != nil {
		t.Fatalf("handleRoomSensor() error = %v", err)
	}

	remote.mu.Lock()
	calls := len(remote.calls)
	remote.mu.Unlock()
	if calls != 0 {
		t.Error("a report with no readings must not replicate")
	}
	if len(telemetry.env) != 0 {
		t.Error("a report with no readings must not reach telemetry")
	}
}

func TestDeviceStatusReport(t *testing.T) {
	eng, _, remote, _ := newTestEngine(t)

	payload := []byte(`{"device_id":"door_scanner","status":"online","wifi_rssi":-61,"nfc_available":true,"uptime":3600}`)
	if err := eng.handleDeviceStatus("", payload); err != nil {
		t.Fatalf("handleDeviceStatus() error = %v", err)
	}

	snap := eng.Snapshot()
	dev, ok := snap.Devices["door_scanner"]
	if !ok {
		t.Fatal("no device record for door_scanner")
	}
	if !dev.Online {
		t.Error("Online = false, want true")
	}
	if dev.WiFiRSSI == nil || *dev.WiFiRSSI != -61 {
		t.Errorf("WiFiRSSI = %v, want -61", dev.WiFiRSSI)
	}
	if dev.LastSeen != testNow {
		t.Errorf("LastSeen = %d, want %d", dev.LastSeen, testNow)
	}

	patches := remote.patches(deviceStatusPath("door_scanner"))
	if len(patches) != 1 {
		t.Fatalf("status patches = %d, want 1", len(patches))
	}
	if got := patches[0].fields["online"]; got != true {
		t.Errorf("patched online = %v, want true", got)
	}
}

func TestDeviceStatusReservedIDStaysLocal(t *testing.T) {
	eng, _, remote, _ := newTestEngine(t)

	// A health report from a device named after a mirrored document must
	// not patch /devices/door_lock/status: that path holds the document's
	// scalar lock status, and a merge would turn it into an object.
	payload := []byte(`{"device_id":"door_lock","status":"online","nfc_available":true}`)
	if err := eng.handleDeviceStatus("", payload); err != nil {
		t.Fatalf("handleDeviceStatus() error = %v", err)
	}

	dev, ok := eng.Snapshot().Devices["door_lock"]
	if !ok {
		t.Fatal("health record missing from the mirror")
	}
	if !dev.Online {
		t.Error("Online = false, want true")
	}

	remote.mu.Lock()
	calls := len(remote.calls)
	remote.mu.Unlock()
	if calls != 0 {
		t.Errorf("remote calls = %d, reserved-ID health must stay local", calls)
	}
	if got := eng.Snapshot().DoorLock.Status; got != state.LockStatusLocked {
		t.Errorf("door status = %q, health reports must not touch lock state", got)
	}
}

func TestDeviceStatusRequiresIdentity(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	cases := []string{
		`{"status":"online"}`,
		`{"device_id":"door_lock"}`,
		`{"device_id":"../evil","status":"online"}`,
	}
	for _, payload := range cases {
		if err := eng.handleDeviceStatus("", []byte(payload)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("payload %s: error = %v, want ErrMalformedPayload", payload, err)
		}
	}
}

func TestLightStatusReport(t *testing.T) {
	eng, _, remote, _ := newTestEngine(t)

	if err := eng.handleLightStatus("", []byte(`{"device_id":"light","mode":"med"}`)); err != nil {
		t.Fatalf("handleLightStatus() error = %v", err)
	}

	if got := eng.Snapshot().RoomControl.LightMode; got != state.LightModeMed {
		t.Errorf("light mode = %q, want med", got)
	}
	patches := remote.patches(pathRoomControl)
	if len(patches) != 1 {
		t.Fatalf("room patches = %d, want 1", len(patches))
	}
	if got := patches[0].fields["light_mode"]; got != "med" {
		t.Errorf("patched light_mode = %v, want med", got)
	}
}

func TestLightStatusUnknownMode(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	err := eng.handleLightStatus("", []byte(`{"mode":"disco"}`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("error = %v, want ErrMalformedPayload", err)
	}
	if got := eng.Snapshot().RoomControl.LightMode; got != state.LightModeOff {
		t.Errorf("light mode = %q, unknown report must not change it", got)
	}
}

func TestSubmitLightCommand(t *testing.T) {
	eng, bus, _, _ := newTestEngine(t)

	// Nobody granted yet: every tag is rejected.
	if err := eng.SubmitLightCommand("A1B2C3D4", "high"); !errors.Is(err, ErrNotOccupant) {
		t.Errorf("error = %v, want ErrNotOccupant before any grant", err)
	}

	if err := eng.handleDoorRequest("", []byte(`{"tag_id":"a1b2c3d4"}`)); err != nil {
		t.Fatalf("grant setup: %v", err)
	}

	if err := eng.SubmitLightCommand("", "high"); !errors.Is(err, ErrEmptyTag) {
		t.Errorf("empty tag: error = %v, want ErrEmptyTag", err)
	}
	if err := eng.SubmitLightCommand("A1B2C3D4", "blinding"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("bad mode: error = %v, want ErrInvalidMode", err)
	}
	if err := eng.SubmitLightCommand("00DEAD42", "high"); !errors.Is(err, ErrNotOccupant) {
		t.Errorf("authorized non-occupant: error = %v, want ErrNotOccupant", err)
	}

	// Occupant, lowercase tag: normalisation makes it match.
	if err := eng.SubmitLightCommand("a1b2c3d4", "HIGH"); err != nil {
		t.Fatalf("SubmitLightCommand() error = %v", err)
	}

	msgs := bus.messages((mqtt.Topics{}).LightCommand())
	if len(msgs) != 1 {
		t.Fatalf("light commands published = %d, want 1", len(msgs))
	}
	var cmd LightCommand
	if err := json.Unmarshal(msgs[0].payload, &cmd); err != nil {
		t.Fatalf("unmarshal command: %v", err)
	}
	if cmd.DeviceID != "light" {
		t.Errorf("DeviceID = %q, want light", cmd.DeviceID)
	}
	if cmd.Mode != "high" {
		t.Errorf("Mode = %q, want high (lowercased)", cmd.Mode)
	}
	if cmd.RequestedBy != "A1B2C3D4" {
		t.Errorf("RequestedBy = %q, want normalised tag", cmd.RequestedBy)
	}
	if cmd.RequestID == "" {
		t.Error("RequestID is empty")
	}

	// Rejected commands must not have published anything extra.
	if total := len(bus.messages((mqtt.Topics{}).LightCommand())); total != 1 {
		t.Errorf("light commands published = %d, rejections must not publish", total)
	}
}

func TestBootstrapSeedsAbsentTree(t *testing.T) {
	eng, _, remote, _ := newTestEngine(t)
	remote.readErr = firebase.ErrAbsent

	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	var seeded *remoteCall
	for i := range remote.calls {
		if remote.calls[i].method == "overwrite" {
			seeded = &remote.calls[i]
		}
	}
	if seeded == nil {
		t.Fatal("absent tree was not seeded")
	}
	if seeded.path != pathDevices {
		t.Errorf("seeded path = %q, want %q", seeded.path, pathDevices)
	}
	skeleton, ok := seeded.value.(map[string]any)
	if !ok {
		t.Fatalf("seeded value has type %T, want map", seeded.value)
	}
	if _, ok := skeleton["door_lock"]; !ok {
		t.Error("skeleton missing door_lock document")
	}
	if _, ok := skeleton["room_control"]; !ok {
		t.Error("skeleton missing room_control document")
	}
}

func TestBootstrapLeavesExistingTree(t *testing.T) {
	eng, _, remote, _ := newTestEngine(t)
	remote.readBody = json.RawMessage(`{"door_lock":{"status":"unlocked"}}`)

	if err := eng.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	for _, c := range remote.calls {
		if c.method == "overwrite" {
			t.Fatal("an existing tree must not be overwritten")
		}
	}
}

func TestBootstrapPropagatesReadFailure(t *testing.T) {
	eng, _, remote, _ := newTestEngine(t)
	remote.readErr = errors.New("connection refused")

	if err := eng.Bootstrap(context.Background()); err == nil {
		t.Fatal("Bootstrap() should surface a non-absence read failure")
	}
}

func TestTimestampsNeverRegress(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	clock := testNow
	eng.now = func() time.Time { return time.Unix(clock, 0) }

	if err := eng.handleDoorRequest("", []byte(`{"tag_id":"A1B2C3D4"}`)); err != nil {
		t.Fatal(err)
	}
	first := eng.Snapshot().DoorLock.UpdatedAt

	// Clock steps backwards between events.
	clock = testNow - 100
	if err := eng.handleDoorRequest("", []byte(`{"tag_id":"00DEAD42"}`)); err != nil {
		t.Fatal(err)
	}
	second := eng.Snapshot().DoorLock.UpdatedAt

	if second < first {
		t.Errorf("updated_at went from %d to %d, must be non-decreasing", first, second)
	}
}
