//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Broker tests. These require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	c, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup
	return c
}

func TestIntegration_ConnectAndClose(t *testing.T) {
	c := connectTest(t, "graylogic-occupancy-it-conn")
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_RetainedOccupancyState(t *testing.T) {
	pub := connectTest(t, "graylogic-occupancy-it-pub")
	topic := Topics{}.OccupancyState("it-kitchen")

	if err := pub.PublishJSON(topic, map[string]any{"occupied": true}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	t.Cleanup(func() { pub.ClearRetained(topic) }) //nolint:errcheck // Test cleanup

	// A subscriber that arrives later still sees the retained state.
	sub := connectTest(t, "graylogic-occupancy-it-sub")
	received := make(chan string, 1)
	if err := sub.Subscribe(Topics{}.AllOccupancyStates(), 1, func(topic string, payload []byte) error {
		if id, ok := LocationFromCommandTopic(topic); ok {
			t.Errorf("state topic parsed as command for %s", id)
		}
		received <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(Topics{}.AllOccupancyStates()) {
		t.Error("subscription not tracked")
	}

	select {
	case payload := <-received:
		if payload != `{"occupied":true}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for retained state")
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	pub := connectTest(t, "graylogic-occupancy-it-cmd-pub")
	sub := connectTest(t, "graylogic-occupancy-it-cmd-sub")

	got := make(chan string, 1)
	if err := sub.Subscribe(Topics{}.AllOccupancyCommands(), 1, func(topic string, _ []byte) error {
		id, _ := LocationFromCommandTopic(topic)
		got <- id
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(Topics{}.OccupancyCommand("it-office"), []byte(`{"command":"trigger"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case id := <-got:
		if id != "it-office" {
			t.Errorf("location = %q, want it-office", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for command")
	}

	if err := sub.Unsubscribe(Topics{}.AllOccupancyCommands()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after unsubscribe", sub.SubscriptionCount())
	}
}
