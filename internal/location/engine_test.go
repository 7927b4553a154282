package location

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

func boolPtr(b bool) *bool { return &b }

func TestSettingsTimeouts(t *testing.T) {
	tests := []struct {
		name        string
		s           Settings
		wantTrigger time.Duration
		wantRelease time.Duration
	}{
		{"defaults", Settings{}, 5 * time.Minute, 2 * time.Minute},
		{"explicit", Settings{DefaultTimeoutSeconds: 60, HoldReleaseTimeoutSeconds: 10}, time.Minute, 10 * time.Second},
		{"legacy", Settings{Timeouts: map[string]int{"default": 900, "presence": 30}}, 15 * time.Minute, 30 * time.Second},
		{
			"explicit beats legacy",
			Settings{DefaultTimeoutSeconds: 60, Timeouts: map[string]int{"default": 900}},
			time.Minute, 2 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.TriggerTimeout(); got != tt.wantTrigger {
				t.Errorf("TriggerTimeout() = %v, want %v", got, tt.wantTrigger)
			}
			if got := tt.s.HoldReleaseTimeout(); got != tt.wantRelease {
				t.Errorf("HoldReleaseTimeout() = %v, want %v", got, tt.wantRelease)
			}
		})
	}
}

func TestBuildEngineConfigs(t *testing.T) {
	locs := []Location{
		{ID: "kitchen", ParentID: "ground", Name: "Kitchen"},
		{ID: "house", Name: "House"},
		{ID: "ground", ParentID: "house", Name: "Ground", Occupancy: Settings{Enabled: boolPtr(false)}},
		{ID: "pantry", ParentID: "kitchen", Name: "Pantry", Occupancy: Settings{
			Strategy:            "follow_parent",
			ContributesToParent: boolPtr(false),
		}},
	}

	configs := BuildEngineConfigs(locs)

	ids := make([]string, 0, len(configs))
	byID := make(map[string]occupancy.LocationConfig)
	for _, c := range configs {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}
	if _, ok := byID["ground"]; ok {
		t.Error("disabled location included")
	}
	if len(configs) != 3 {
		t.Fatalf("configs = %v, want house, kitchen, pantry", ids)
	}

	kitchen := byID["kitchen"]
	if kitchen.Strategy != occupancy.StrategyIndependent || !kitchen.ContributesToParent {
		t.Errorf("kitchen = %+v", kitchen)
	}
	if kitchen.DefaultTimeout != occupancy.DefaultTriggerTimeout || kitchen.HoldReleaseTimeout != occupancy.DefaultHoldReleaseTimeout {
		t.Errorf("kitchen timeouts = %v/%v, want defaults", kitchen.DefaultTimeout, kitchen.HoldReleaseTimeout)
	}
	pantry := byID["pantry"]
	if pantry.Strategy != occupancy.StrategyFollowParent || pantry.ContributesToParent {
		t.Errorf("pantry = %+v", pantry)
	}

	// Kitchen's parent is gone; the engine must accept the set.
	if _, err := occupancy.NewEngine(configs); err != nil {
		t.Errorf("NewEngine(BuildEngineConfigs) error = %v", err)
	}
}

func TestBuildBindings(t *testing.T) {
	bindings := BuildBindings([]Sensor{
		{DeviceID: "pir", LocationID: "kitchen", Kind: "motion", TimeoutSeconds: 90},
		{DeviceID: "lux", LocationID: "kitchen", Kind: "illuminance"},
		{DeviceID: "tv", LocationID: "lounge", Kind: "media", StateKey: "power"},
	})

	if len(bindings) != 2 {
		t.Fatalf("bindings = %+v, want 2", bindings)
	}
	if bindings[0].Kind != classify.KindMotion || bindings[0].Timeout != 90*time.Second {
		t.Errorf("pir binding = %+v", bindings[0])
	}
	if bindings[1].StateKey != "power" {
		t.Errorf("tv binding = %+v", bindings[1])
	}
	if _, err := classify.New(bindings); err != nil {
		t.Errorf("classify.New(BuildBindings) error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	ok := []Location{
		{ID: "house", Name: "House"},
		{ID: "kitchen", ParentID: "house", Name: "Kitchen"},
	}
	if err := Validate(ok); err != nil {
		t.Errorf("Validate(valid tree) error = %v", err)
	}

	bad := []Location{
		{ID: "a", ParentID: "a", Name: "A"},
		{ID: "b", Name: "B", Occupancy: Settings{DefaultTimeoutSeconds: -1}},
	}
	if err := Validate(bad); err == nil {
		t.Error("Validate(bad tree) returned nil")
	}
}
