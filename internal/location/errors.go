package location

import "errors"

var (
	// ErrLocationNotFound is returned when a location ID does not exist.
	ErrLocationNotFound = errors.New("location not found")

	// ErrLocationExists is returned when creating a location whose ID is taken.
	ErrLocationExists = errors.New("location already exists")

	// ErrLocationHasChildren is returned when deleting a location that still has children.
	ErrLocationHasChildren = errors.New("location has children: delete children first")

	// ErrSensorNotFound is returned when a sensor device ID is not bound to any location.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrInvalidName is returned when a location name fails validation.
	ErrInvalidName = errors.New("invalid location name")

	// ErrInvalidTopology is returned when the tree is malformed (unknown parent, cycle, duplicate).
	ErrInvalidTopology = errors.New("invalid location topology")

	// ErrInvalidSettings is returned when occupancy settings are malformed.
	ErrInvalidSettings = errors.New("invalid occupancy settings")

	// ErrInvalidSensor is returned when a sensor binding is malformed.
	ErrInvalidSensor = errors.New("invalid sensor binding")
)
