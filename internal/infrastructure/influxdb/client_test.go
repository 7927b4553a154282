package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "graylogic-dev-token",
		Org:           "graylogic",
		Bucket:        "occupancy",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip returns a live client, skipping the test when no server runs.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := influxdb.Connect(ctx, testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// ─── Connection ────────────────────────────────────────────────────

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_ZeroValue(t *testing.T) {
	var c influxdb.Client

	if c.IsConnected() {
		t.Error("zero Client reports connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	// Writes on a disconnected client are dropped, not panics.
	c.WriteOccupancyTransition(influxdb.OccupancyPoint{LocationID: "kitchen"})
	c.WriteSensorSignal(influxdb.SensorPoint{DeviceID: "pir"})
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

// ─── Live server ───────────────────────────────────────────────────

func TestWriteOccupancyTransition_Live(t *testing.T) {
	client := connectOrSkip(t)

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	now := time.Now()
	client.WriteOccupancyTransition(influxdb.OccupancyPoint{
		LocationID: "test-kitchen", Occupied: true, Reason: "event", Timestamp: now,
	})
	client.WriteSensorSignal(influxdb.SensorPoint{
		DeviceID: "test-pir", LocationID: "test-kitchen", Kind: "motion", Active: true, Timestamp: now,
	})
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}

func TestClose_Live(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	client.Flush() // no-op after close
}
