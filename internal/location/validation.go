package location

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// Validation constants.
const (
	maxNameLength = 100
	maxIDLength   = 64
	maxTreeDepth  = 32
	idPattern     = `^[a-z0-9]+(?:[-_][a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// ValidateName checks if a location name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateID checks that an ID is lowercase alphanumeric with - or _ separators.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidTopology)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id %q exceeds %d characters", ErrInvalidTopology, id, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id %q must be lowercase alphanumeric with hyphens or underscores", ErrInvalidTopology, id)
	}
	return nil
}

// ValidateSettings checks occupancy settings in isolation.
func ValidateSettings(s Settings) error {
	if _, err := occupancy.ParseStrategy(s.Strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.DefaultTimeoutSeconds < 0 || s.HoldReleaseTimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeouts cannot be negative", ErrInvalidSettings)
	}
	for k, v := range s.Timeouts {
		if v < 0 {
			return fmt.Errorf("%w: timeouts.%s cannot be negative", ErrInvalidSettings, k)
		}
	}
	return nil
}

// ValidateLocation validates a Location before persistence.
func ValidateLocation(l *Location) error {
	if err := ValidateID(l.ID); err != nil {
		return err
	}
	if l.ParentID == l.ID {
		return fmt.Errorf("%w: %s cannot be its own parent", ErrInvalidTopology, l.ID)
	}
	if err := ValidateName(l.Name); err != nil {
		return err
	}
	return ValidateSettings(l.Occupancy)
}

// ValidateSensor validates a sensor binding before persistence.
func ValidateSensor(s *Sensor) error {
	if strings.TrimSpace(s.DeviceID) == "" {
		return fmt.Errorf("%w: device_id cannot be empty", ErrInvalidSensor)
	}
	if s.LocationID == "" {
		return fmt.Errorf("%w: %s has no location", ErrInvalidSensor, s.DeviceID)
	}
	if _, err := classify.ParseKind(s.Kind); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSensor, s.DeviceID, err)
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: %s: timeout cannot be negative", ErrInvalidSensor, s.DeviceID)
	}
	return nil
}

// Validate checks a whole tree: every location is individually valid, IDs
// are unique, every parent exists and no parent chain loops.
//
// All problems are collected so a topology file can be fixed in one pass.
func Validate(locations []Location) error {
	var errs []string
	byID := make(map[string]Location, len(locations))

	for i := range locations {
		l := &locations[i]
		if err := ValidateLocation(l); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if _, dup := byID[l.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate location id %q", l.ID))
			continue
		}
		byID[l.ID] = *l
	}

	for _, l := range byID {
		if l.ParentID != "" {
			if _, ok := byID[l.ParentID]; !ok {
				errs = append(errs, fmt.Sprintf("location %q: unknown parent %q", l.ID, l.ParentID))
			}
		}
	}

	for id := range byID {
		seen := map[string]bool{id: true}
		for cur := byID[id].ParentID; cur != ""; cur = byID[cur].ParentID {
			if seen[cur] {
				errs = append(errs, fmt.Sprintf("location %q: parent chain loops at %q", id, cur))
				break
			}
			seen[cur] = true
		}
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("%w: %s", ErrInvalidTopology, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateSensors checks sensor bindings against a set of known locations.
func ValidateSensors(sensors []Sensor, locations []Location) error {
	known := make(map[string]bool, len(locations))
	for _, l := range locations {
		known[l.ID] = true
	}
	seen := make(map[string]bool, len(sensors))
	var errs []string
	for i := range sensors {
		s := &sensors[i]
		if err := ValidateSensor(s); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if seen[s.DeviceID] {
			errs = append(errs, fmt.Sprintf("device %q bound twice", s.DeviceID))
		}
		seen[s.DeviceID] = true
		if !known[s.LocationID] {
			errs = append(errs, fmt.Sprintf("device %q: unknown location %q", s.DeviceID, s.LocationID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSensor, strings.Join(errs, "; "))
	}
	return nil
}
