package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

var pirBinding = []classify.Binding{
	{DeviceID: "pir-kitchen", LocationID: "kitchen", Kind: classify.KindMotion},
	{DeviceID: "tv-lounge", LocationID: "lounge", Kind: classify.KindMedia},
}

// ─── Signals ───────────────────────────────────────────────────────

func TestHandleSignal_MotionTriggers(t *testing.T) {
	h := setupTracker(t, pirBinding, room("kitchen", ""), room("lounge", ""))
	ctx := context.Background()

	r, err := h.tracker.HandleSignal(ctx, classify.Signal{
		DeviceID: "pir-kitchen",
		State:    map[string]any{"motion": true},
	})
	if err != nil {
		t.Fatalf("HandleSignal() error = %v", err)
	}
	if len(r.Transitions) != 1 || !mustState(t, h.tracker, "kitchen").Occupied {
		t.Fatalf("kitchen not occupied; transitions = %d", len(r.Transitions))
	}

	if len(h.rec.signals) != 1 {
		t.Fatalf("recorded %d sensor points, want 1", len(h.rec.signals))
	}
	sp := h.rec.signals[0]
	if sp.DeviceID != "pir-kitchen" || sp.LocationID != "kitchen" || sp.Kind != "motion" || !sp.Active {
		t.Errorf("sensor point = %+v", sp)
	}

	// Same level again is not an edge.
	r, err = h.tracker.HandleSignal(ctx, classify.Signal{
		DeviceID: "pir-kitchen",
		State:    map[string]any{"motion": true},
	})
	if err != nil || r.Changed() {
		t.Errorf("repeat signal = %+v, %v; want no change", r, err)
	}
}

func TestHandleSignal_MediaHoldAndRelease(t *testing.T) {
	h := setupTracker(t, pirBinding, room("kitchen", ""), room("lounge", ""))
	ctx := context.Background()

	_, _ = h.tracker.HandleSignal(ctx, classify.Signal{DeviceID: "tv-lounge", State: map[string]any{"playing": true}})
	if st := mustState(t, h.tracker, "lounge"); !st.HeldBy("tv-lounge") {
		t.Fatalf("lounge = %+v, want held by tv-lounge", st)
	}

	_, _ = h.tracker.HandleSignal(ctx, classify.Signal{DeviceID: "tv-lounge", State: map[string]any{"playing": "paused"}})
	st := mustState(t, h.tracker, "lounge")
	if st.IsHeld() || !st.OccupiedUntil.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("lounge = %+v, want trailing 2m timer", st)
	}
	if !h.rec.signals[1].Timestamp.Equal(t0) || h.rec.signals[1].Active {
		t.Errorf("release point = %+v", h.rec.signals[1])
	}
}

func TestHandleSignal_Ignored(t *testing.T) {
	h := setupTracker(t, pirBinding, room("kitchen", ""), room("lounge", ""))

	r, err := h.tracker.HandleSignal(context.Background(), classify.Signal{
		DeviceID: "light-hall",
		State:    map[string]any{"on": true},
	})
	if err != nil || r.Changed() {
		t.Errorf("unbound device = %+v, %v; want empty result", r, err)
	}
	if len(h.mqtt.getMessages()) != 0 || len(h.rec.signals) != 0 {
		t.Error("unbound device produced output")
	}
}

func TestHandleSignal_NoClassifier(t *testing.T) {
	h := setupTracker(t, nil, room("kitchen", ""))

	_, err := h.tracker.HandleSignal(context.Background(), classify.Signal{DeviceID: "pir-kitchen"})
	if !errors.Is(err, ErrNoClassifier) {
		t.Errorf("HandleSignal() error = %v, want ErrNoClassifier", err)
	}
}

// ─── Commands ──────────────────────────────────────────────────────

func seconds(v float64) *float64 { return &v }

func TestExecute(t *testing.T) {
	tests := []struct {
		name    string
		setup   []Command
		cmd     Command
		check   func(t *testing.T, st occupancy.State)
		wantErr error
	}{
		{
			name: "trigger with timeout in seconds",
			cmd:  Command{Command: "trigger", SourceID: "panel", Timeout: seconds(600)},
			check: func(t *testing.T, st occupancy.State) {
				if !st.OccupiedUntil.Equal(t0.Add(10 * time.Minute)) {
					t.Errorf("OccupiedUntil = %v, want +10m", st.OccupiedUntil)
				}
			},
		},
		{
			name:  "release with explicit zero timeout vacates",
			setup: []Command{{Command: "hold", SourceID: "tv"}},
			cmd:   Command{Command: "release", SourceID: "tv", Timeout: seconds(0)},
			check: func(t *testing.T, st occupancy.State) {
				if st.Occupied {
					t.Errorf("state = %+v, want vacant", st)
				}
			},
		},
		{
			name:  "release without timeout starts trailing window",
			setup: []Command{{Command: "hold", SourceID: "tv"}},
			cmd:   Command{Command: "release", SourceID: "tv"},
			check: func(t *testing.T, st occupancy.State) {
				if !st.Occupied || !st.OccupiedUntil.Equal(t0.Add(2*time.Minute)) {
					t.Errorf("state = %+v, want occupied until +2m", st)
				}
			},
		},
		{
			name: "hold without source uses mqtt",
			cmd:  Command{Command: "hold"},
			check: func(t *testing.T, st occupancy.State) {
				if !st.HeldBy("mqtt") {
					t.Errorf("Holds = %v, want [mqtt]", st.Holds)
				}
			},
		},
		{
			name: "lock",
			cmd:  Command{Command: "lock", SourceID: "scene:movie"},
			check: func(t *testing.T, st occupancy.State) {
				if !st.LockedBySource("scene:movie") {
					t.Errorf("LockedBy = %v", st.LockedBy)
				}
			},
		},
		{
			name:  "unlock_all",
			setup: []Command{{Command: "lock", SourceID: "a"}, {Command: "lock", SourceID: "b"}},
			cmd:   Command{Command: "unlock_all", SourceID: "admin"},
			check: func(t *testing.T, st occupancy.State) {
				if st.IsLocked() {
					t.Errorf("LockedBy = %v, want none", st.LockedBy)
				}
			},
		},
		{
			name:  "vacate_area with include_locked",
			setup: []Command{{Command: "trigger", SourceID: "pir"}, {Command: "lock", SourceID: "away"}},
			cmd:   Command{Command: CommandVacateArea, SourceID: "goodnight", IncludeLocked: true},
			check: func(t *testing.T, st occupancy.State) {
				if st.Occupied || st.IsLocked() {
					t.Errorf("state = %+v, want vacant", st)
				}
			},
		},
		{
			name:    "unknown command",
			cmd:     Command{Command: "dance"},
			wantErr: ErrInvalidCommand,
		},
		{
			name:    "negative timeout",
			cmd:     Command{Command: "trigger", Timeout: seconds(-5)},
			wantErr: ErrInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTracker(t, nil, room("office", ""))
			ctx := context.Background()
			for _, c := range tt.setup {
				if _, err := h.tracker.Execute(ctx, "office", c); err != nil {
					t.Fatalf("setup %s error = %v", c.Command, err)
				}
			}

			_, err := h.tracker.Execute(ctx, "office", tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			tt.check(t, mustState(t, h.tracker, "office"))
		})
	}
}

func TestExecute_Audited(t *testing.T) {
	h := setupTracker(t, nil, room("floor", ""), room("office", "floor"))
	ctx := context.Background()

	if _, err := h.tracker.ExecuteAs(ctx, "office", Command{Command: "trigger", Timeout: seconds(90)}, Actor{Origin: audit.OriginAPI, Subject: "usr-001"}); err != nil {
		t.Fatalf("ExecuteAs() error = %v", err)
	}
	if _, err := h.tracker.Execute(ctx, "floor", Command{Command: CommandVacateArea, SourceID: "goodnight", IncludeLocked: true}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := h.tracker.Execute(ctx, "office", Command{Command: "dance"}); err == nil {
		t.Fatal("Execute(dance) should fail")
	}

	entries := h.audit.getEntries()
	if len(entries) != 2 {
		t.Fatalf("audited %d commands, want 2 (rejected commands are not recorded)", len(entries))
	}

	first := entries[0]
	if first.LocationID != "office" || first.Command != "trigger" || first.SourceID != "mqtt" {
		t.Errorf("first = %+v", first)
	}
	if first.Origin != audit.OriginAPI || first.Subject != "usr-001" || first.Transitions != 2 {
		t.Errorf("first actor/transitions = %+v", first)
	}
	if first.Details["timeout"] != 90.0 || !first.CreatedAt.Equal(t0) {
		t.Errorf("first details/time = %v %v", first.Details, first.CreatedAt)
	}

	second := entries[1]
	if second.Origin != audit.OriginLocal || second.Details["include_locked"] != true {
		t.Errorf("second = %+v", second)
	}
}

func TestExecute_AuditFailureNotReturned(t *testing.T) {
	h := setupTracker(t, nil, room("office", ""))
	h.audit.err = errors.New("disk full")

	if _, err := h.tracker.Execute(context.Background(), "office", Command{Command: "hold", SourceID: "tv"}); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if !mustState(t, h.tracker, "office").HeldBy("tv") {
		t.Error("hold not applied")
	}
}

// ─── Subscriptions ─────────────────────────────────────────────────

func TestSubscribe_RegistersHandlers(t *testing.T) {
	h := setupTracker(t, pirBinding, room("kitchen", ""), room("lounge", ""))
	sub := &mockSubscriber{}

	if err := h.tracker.Subscribe(context.Background(), sub); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	for _, topic := range []string{"graylogic/state/+/+", "graylogic/core/occupancy/+/command"} {
		if _, ok := sub.handlers[topic]; !ok {
			t.Errorf("no handler for %s", topic)
		}
	}
}

func TestSubscribe_NoClassifierSkipsState(t *testing.T) {
	h := setupTracker(t, nil, room("kitchen", ""))
	sub := &mockSubscriber{}

	if err := h.tracker.Subscribe(context.Background(), sub); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, ok := sub.handlers["graylogic/state/+/+"]; ok {
		t.Error("bridge state subscribed without a classifier")
	}
}

func TestSubscribe_Error(t *testing.T) {
	h := setupTracker(t, nil, room("kitchen", ""))
	sub := &mockSubscriber{failOn: "graylogic/core/occupancy/+/command"}

	if err := h.tracker.Subscribe(context.Background(), sub); err == nil {
		t.Error("Subscribe() error = nil, want failure")
	}
}

func TestStateHandler(t *testing.T) {
	h := setupTracker(t, pirBinding, room("kitchen", ""), room("lounge", ""))
	sub := &mockSubscriber{}
	if err := h.tracker.Subscribe(context.Background(), sub); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	handler := sub.handlers["graylogic/state/+/+"]

	payload := []byte(`{"device_id":"pir-kitchen","timestamp":"2025-01-15T12:00:00Z","state":{"motion":true},"protocol":"knx","address":"1/2/3"}`)
	if err := handler("graylogic/state/knx/pir-kitchen", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !mustState(t, h.tracker, "kitchen").Occupied {
		t.Error("kitchen not occupied from bridge state")
	}

	if err := handler("graylogic/state/knx/pir-kitchen", []byte(`{"state":{"motion":true}}`)); err == nil {
		t.Error("handler accepted state without device_id")
	}
}

func TestCommandHandler(t *testing.T) {
	h := setupTracker(t, nil, room("kitchen", ""))
	sub := &mockSubscriber{}
	if err := h.tracker.Subscribe(context.Background(), sub); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	handler := sub.handlers["graylogic/core/occupancy/+/command"]

	if err := handler("graylogic/core/occupancy/kitchen/command", []byte(`{"command":"lock","source_id":"away"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !mustState(t, h.tracker, "kitchen").LockedBySource("away") {
		t.Error("kitchen not locked by away")
	}
	if entries := h.audit.getEntries(); len(entries) != 1 || entries[0].Origin != audit.OriginMQTT {
		t.Errorf("audit = %+v, want one mqtt entry", entries)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"bad json", "graylogic/core/occupancy/kitchen/command", `{broken`, ErrInvalidCommand},
		{"bad topic", "graylogic/core/occupancy/kitchen/state", `{"command":"lock"}`, ErrInvalidCommand},
		{"unknown location", "graylogic/core/occupancy/attic/command", `{"command":"lock"}`, ErrUnknownLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := handler(tt.topic, []byte(tt.payload)); !errors.Is(err, tt.wantErr) {
				t.Errorf("handler error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
