package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/influxdb"
)

// fakeInflux serves /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu      sync.Mutex
	lines   []string
	healthy bool
	writeOK bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{healthy: true, writeOK: true}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Path {
		case "/ping":
			if !f.healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			if !f.writeOK {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"code":"invalid","message":"rejected"}`)) //nolint:errcheck // test
				return
			}
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					f.lines = append(f.lines, line)
				}
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

// waitForLine polls until a recorded line contains every fragment.
func (f *fakeInflux) waitForLine(t *testing.T, fragments ...string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, line := range f.lines {
			if containsAll(line, fragments) {
				f.mu.Unlock()
				return line
			}
		}
		f.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no line containing %v", fragments)
	return ""
}

func containsAll(s string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "graylogic-test-token",
		Org:           "graylogic",
		Bucket:        "audio",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Errors(t *testing.T) {
	unhealthy := newFakeInflux(t)
	unhealthy.healthy = false

	tests := []struct {
		name    string
		cfg     config.InfluxDBConfig
		wantErr error
	}{
		{"disabled", config.InfluxDBConfig{Enabled: false}, influxdb.ErrDisabled},
		{"unreachable", testConfig("http://127.0.0.1:1"), influxdb.ErrConnectionFailed},
		{"unhealthy", testConfig(unhealthy.URL), influxdb.ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := influxdb.Connect(context.Background(), tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Connect() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := testConfig(f.URL)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() with default batch settings error = %v", err)
	}
	client.Close()
}

func TestClose(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after Close are no-ops.
	client.WriteProbe(influxdb.Probe{DeviceID: "speakers"})
	client.Flush()

	// A second Close, like the one registered with t.Cleanup, does nothing.
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClose_ConcurrentWithWrites(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				client.WriteProbe(influxdb.Probe{DeviceID: "speakers", Presence: "present"})
				client.WriteHealth(influxdb.Health{Devices: i})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.Close()
	}()
	wg.Wait()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteProbe(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	node := uint32(42)
	client.WriteProbe(influxdb.Probe{
		DeviceID:      "speakers",
		DeviceType:    "output",
		Presence:      "present",
		NodeID:        &node,
		Latency:       2500 * time.Microsecond,
		PropertyCount: 7,
	})
	client.Flush()

	f.waitForLine(t,
		influxdb.MeasurementProbe+",",
		"device_id=speakers",
		"presence=present",
		"type=output",
		"latency_ms=2.5",
		"node_id=42i",
		"property_count=7i",
		"present=true",
	)
}

func TestWriteProbe_DefaultDevice(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteProbe(influxdb.Probe{DeviceID: "default", DeviceType: "duplex", Presence: "default"})
	client.Flush()

	line := f.waitForLine(t, "device_id=default", "present=false")
	if strings.Contains(line, "node_id=") {
		t.Errorf("line %q has node_id for the default device", line)
	}
}

func TestWriteHealth(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteHealth(influxdb.Health{Devices: 3, Present: 1, Absent: 1, Errors: 1})
	client.Flush()

	f.waitForLine(t, influxdb.MeasurementHealth+",", "devices=3i", "present=1i", "absent=1i", "errors=1i")
}

func TestSetOnError(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	f.mu.Lock()
	f.writeOK = false
	f.mu.Unlock()

	client.WriteProbe(influxdb.Probe{DeviceID: "speakers", Presence: "absent"})
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("error callback received nil")
		}
	case <-time.After(10 * time.Second):
		t.Error("error callback not invoked for a rejected write")
	}
}
