package location

import "time"

// Location is one node of the location tree.
type Location struct {
	ID        string    `json:"id" yaml:"id"`
	ParentID  string    `json:"parent_id,omitempty" yaml:"parent,omitempty"`
	Name      string    `json:"name" yaml:"name"`
	Type      string    `json:"type" yaml:"type,omitempty"`
	SortOrder int       `json:"sort_order" yaml:"sort_order,omitempty"`
	Occupancy Settings  `json:"occupancy" yaml:"occupancy,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Location types used by the bundled topology files. Type is informational;
// occupancy behaviour is driven entirely by Settings.
const (
	TypeSite     = "site"
	TypeBuilding = "building"
	TypeFloor    = "floor"
	TypeRoom     = "room"
	TypeZone     = "zone"
	TypeOutdoor  = "outdoor"
)

// Settings holds a location's occupancy configuration.
//
// Zero values mean "use the default": enabled, independent strategy,
// contributing to the parent, 300 s trigger timeout, 120 s trailing window.
type Settings struct {
	// Enabled turns occupancy tracking on or off for this location.
	// Disabled locations are left out of the engine entirely.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Strategy is "independent" or "follow_parent".
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// ContributesToParent lets occupancy bubble to the parent location.
	ContributesToParent *bool `json:"contributes_to_parent,omitempty" yaml:"contributes_to_parent,omitempty"`

	// DefaultTimeoutSeconds is the TRIGGER timeout.
	DefaultTimeoutSeconds int `json:"default_timeout,omitempty" yaml:"default_timeout,omitempty"`

	// HoldReleaseTimeoutSeconds is the trailing window after the last hold ends.
	HoldReleaseTimeoutSeconds int `json:"hold_release_timeout,omitempty" yaml:"hold_release_timeout,omitempty"`

	// Timeouts is the legacy per-category form: "default" maps to the trigger
	// timeout and "presence" to the trailing window. Explicit fields win.
	Timeouts map[string]int `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`
}

// IsEnabled reports whether occupancy tracking is on (default true).
func (s Settings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Contributes reports whether occupancy bubbles to the parent (default true).
func (s Settings) Contributes() bool {
	return s.ContributesToParent == nil || *s.ContributesToParent
}

// Sensor binds a device to the location it observes.
type Sensor struct {
	DeviceID   string `json:"device_id" yaml:"device_id"`
	LocationID string `json:"location_id" yaml:"location"`

	// Kind is the classification policy: motion, presence, media or contact.
	Kind string `json:"kind" yaml:"kind"`

	// StateKey selects the field of the device state to read. Empty uses
	// the kind's default key.
	StateKey string `json:"state_key,omitempty" yaml:"state_key,omitempty"`

	// TimeoutSeconds overrides the location's trigger timeout for this sensor.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// File is the on-disk topology description loaded by LoadFile.
type File struct {
	Locations []Location `yaml:"locations"`
	Sensors   []Sensor   `yaml:"sensors"`
}
