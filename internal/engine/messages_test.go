package engine

import (
	"errors"
	"testing"
)

func TestDecodeScanEventDefaultsDeviceID(t *testing.T) {
	ev, err := decodeScanEvent([]byte(`{"tag_id":"A1B2C3D4"}`))
	if err != nil {
		t.Fatalf("decodeScanEvent() error = %v", err)
	}
	if ev.DeviceID != "door_lock" {
		t.Errorf("DeviceID = %q, want door_lock default", ev.DeviceID)
	}
	if ev.TagID != "A1B2C3D4" {
		t.Errorf("TagID = %q, want A1B2C3D4", ev.TagID)
	}
}

func TestDecodeScanEventMalformed(t *testing.T) {
	if _, err := decodeScanEvent([]byte(`not json`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("error = %v, want ErrMalformedPayload", err)
	}
}

func TestDecodeSensorReportOptionalFields(t *testing.T) {
	rep, err := decodeSensorReport([]byte(`{"device_id":"room_control","humidity":55.5}`))
	if err != nil {
		t.Fatalf("decodeSensorReport() error = %v", err)
	}
	if rep.Temperature != nil {
		t.Errorf("Temperature = %v, want nil when absent", rep.Temperature)
	}
	if rep.Humidity == nil || *rep.Humidity != 55.5 {
		t.Errorf("Humidity = %v, want 55.5", rep.Humidity)
	}
}

func TestValidDeviceID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"door_lock", true},
		{"room-control", true},
		{"Light2", true},
		{"", false},
		{"a/b", false},
		{"a.b", false},
		{"tag id", false},
	}
	for _, tt := range tests {
		if got := validDeviceID(tt.id); got != tt.want {
			t.Errorf("validDeviceID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
