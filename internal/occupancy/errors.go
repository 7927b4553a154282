package occupancy

import "errors"

// Errors returned by the occupancy package.
//
// Only construction and parsing can fail. Business conditions (unknown
// location, events on a locked location) are absorbed as no-ops.
var (
	// ErrInvalidConfig is returned when a location config is malformed.
	ErrInvalidConfig = errors.New("occupancy: invalid location config")

	// ErrDuplicateLocation is returned when two configs share an ID.
	ErrDuplicateLocation = errors.New("occupancy: duplicate location")

	// ErrCyclicTopology is returned when a parent chain loops back on itself.
	ErrCyclicTopology = errors.New("occupancy: cyclic topology")

	// ErrUnknownEventType is returned when parsing an unrecognised event type.
	ErrUnknownEventType = errors.New("occupancy: unknown event type")

	// ErrInvalidSnapshot is returned when snapshot bytes are not a JSON object.
	ErrInvalidSnapshot = errors.New("occupancy: invalid snapshot")
)
