package location

import (
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// Legacy timeout keys accepted in Settings.Timeouts.
const (
	legacyTimeoutDefault  = "default"
	legacyTimeoutPresence = "presence"
)

// TriggerTimeout resolves the TRIGGER timeout: the explicit field, then the
// legacy timeouts.default key, then the package default.
func (s Settings) TriggerTimeout() time.Duration {
	if s.DefaultTimeoutSeconds > 0 {
		return seconds(s.DefaultTimeoutSeconds)
	}
	if v, ok := s.Timeouts[legacyTimeoutDefault]; ok && v > 0 {
		return seconds(v)
	}
	return occupancy.DefaultTriggerTimeout
}

// HoldReleaseTimeout resolves the trailing window: the explicit field, then
// the legacy timeouts.presence key, then the package default.
func (s Settings) HoldReleaseTimeout() time.Duration {
	if s.HoldReleaseTimeoutSeconds > 0 {
		return seconds(s.HoldReleaseTimeoutSeconds)
	}
	if v, ok := s.Timeouts[legacyTimeoutPresence]; ok && v > 0 {
		return seconds(v)
	}
	return occupancy.DefaultHoldReleaseTimeout
}

// BuildEngineConfigs turns stored locations into occupancy engine configs.
//
// Disabled locations are dropped; their enabled children then see an
// unconfigured parent and act as roots. Output is parent-first so timeout
// sweeps settle parents before their followers. An unparseable strategy
// falls back to independent (Validate rejects it before storage).
func BuildEngineConfigs(locations []Location) []occupancy.LocationConfig {
	configs := make([]occupancy.LocationConfig, 0, len(locations))
	for _, l := range ParentFirst(locations) {
		s := l.Occupancy
		if !s.IsEnabled() {
			continue
		}
		strategy, err := occupancy.ParseStrategy(s.Strategy)
		if err != nil {
			strategy = occupancy.StrategyIndependent
		}
		configs = append(configs, occupancy.LocationConfig{
			ID:                  l.ID,
			ParentID:            l.ParentID,
			Strategy:            strategy,
			ContributesToParent: s.Contributes(),
			DefaultTimeout:      s.TriggerTimeout(),
			HoldReleaseTimeout:  s.HoldReleaseTimeout(),
		})
	}
	return configs
}

// BuildBindings turns stored sensors into classifier bindings.
// Sensors with an unknown kind are skipped.
func BuildBindings(sensors []Sensor) []classify.Binding {
	bindings := make([]classify.Binding, 0, len(sensors))
	for _, s := range sensors {
		kind, err := classify.ParseKind(s.Kind)
		if err != nil {
			continue
		}
		bindings = append(bindings, classify.Binding{
			DeviceID:   s.DeviceID,
			LocationID: s.LocationID,
			Kind:       kind,
			StateKey:   s.StateKey,
			Timeout:    seconds(s.TimeoutSeconds),
		})
	}
	return bindings
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
