package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roomlink-io/roomlink/internal/infrastructure/config"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := Connect(config.FirebaseConfig{
		DatabaseURL: srv.URL,
		Timeout:     2,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return client, srv
}

func TestConnect_MissingURL(t *testing.T) {
	_, err := Connect(config.FirebaseConfig{})
	if !errors.Is(err, ErrMissingURL) {
		t.Errorf("Connect() error = %v, want ErrMissingURL", err)
	}
}

func TestRead_ReturnsValue(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.URL.Path != "/devices/door_lock.json" {
			t.Errorf("path = %q, want /devices/door_lock.json", r.URL.Path)
		}
		io.WriteString(w, `{"status":"locked"}`)
	})

	raw, err := client.Read(context.Background(), "/devices/door_lock")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Read() returned invalid JSON: %v", err)
	}
	if doc["status"] != "locked" {
		t.Errorf("status = %v, want locked", doc["status"])
	}
}

func TestRead_AbsentPath(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "null")
	})

	_, err := client.Read(context.Background(), "/devices")
	if !errors.Is(err, ErrAbsent) {
		t.Errorf("Read() error = %v, want ErrAbsent", err)
	}
}

func TestOverwrite_SendsPUT(t *testing.T) {
	var gotMethod, gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		io.WriteString(w, `{}`)
	})

	err := client.Overwrite(context.Background(), "/devices", map[string]any{"door_lock": map[string]any{"status": "locked"}})
	if err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotBody != `{"door_lock":{"status":"locked"}}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestPartialUpdate_SendsPATCH(t *testing.T) {
	var gotMethod string
	var gotFields map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotFields)
		io.WriteString(w, `{}`)
	})

	err := client.PartialUpdate(context.Background(), "/devices/door_lock", map[string]any{
		"last_attempt": "FFFFFFFF",
	})
	if err != nil {
		t.Fatalf("PartialUpdate() error = %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", gotMethod)
	}
	if gotFields["last_attempt"] != "FFFFFFFF" {
		t.Errorf("fields = %v", gotFields)
	}
}

func TestPartialUpdate_RemoteError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.PartialUpdate(context.Background(), "/devices/door_lock", map[string]any{"status": "unlocked"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("PartialUpdate() error = %v, want ErrRequestFailed", err)
	}
}

func TestRead_InvalidPath(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{}`)
	})

	_, err := client.Read(context.Background(), "devices")
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Read() error = %v, want ErrInvalidPath", err)
	}
}

func TestAuthToken_AppendedToRequests(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client, err := Connect(config.FirebaseConfig{
		DatabaseURL: srv.URL,
		AuthToken:   "secret",
		Timeout:     2,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if _, err := client.Read(context.Background(), "/devices"); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if gotQuery != "auth=secret" {
		t.Errorf("query = %q, want auth=secret", gotQuery)
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{}`)
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{}`)
	}))
	url := srv.URL
	srv.Close() // server gone: requests must fail, not hang

	client, err := Connect(config.FirebaseConfig{DatabaseURL: url, Timeout: 1})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() expected error for unreachable server")
	}
}
