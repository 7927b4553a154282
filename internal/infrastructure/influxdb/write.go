package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementOccupancy = "occupancy"
	MeasurementSensor    = "occupancy_sensor"
)

// OccupancyPoint is one location transition.
type OccupancyPoint struct {
	LocationID       string
	Occupied         bool
	PreviousOccupied bool
	// Reason is what caused the transition: event, propagation or timeout.
	Reason    string
	Holds     int
	Locks     int
	Timestamp time.Time
}

// SensorPoint is one classified sensor edge.
type SensorPoint struct {
	DeviceID   string
	LocationID string
	Kind       string
	Active     bool
	Timestamp  time.Time
}

// WriteOccupancyTransition records a location transition.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Nothing is written when the client is not connected.
func (c *Client) WriteOccupancyTransition(p OccupancyPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(occupancyPoint(p))
}

// WriteSensorSignal records a sensor edge that produced engine events.
func (c *Client) WriteSensorSignal(p SensorPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sensorPoint(p))
}

// occupancyPoint tags by location and reason (both low cardinality).
func occupancyPoint(p OccupancyPoint) *write.Point {
	return write.NewPoint(
		MeasurementOccupancy,
		map[string]string{
			"location_id": p.LocationID,
			"reason":      p.Reason,
		},
		map[string]any{
			"occupied":          p.Occupied,
			"previous_occupied": p.PreviousOccupied,
			"hold_count":        p.Holds,
			"lock_count":        p.Locks,
		},
		pointTime(p.Timestamp),
	)
}

func sensorPoint(p SensorPoint) *write.Point {
	return write.NewPoint(
		MeasurementSensor,
		map[string]string{
			"device_id":   p.DeviceID,
			"location_id": p.LocationID,
			"kind":        p.Kind,
		},
		map[string]any{
			"active": p.Active,
		},
		pointTime(p.Timestamp),
	)
}

func pointTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
