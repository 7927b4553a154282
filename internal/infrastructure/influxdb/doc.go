// Package influxdb records occupancy history in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, a
// non-blocking batched write API, and health monitoring. Two measurements
// are written:
//
//   - occupancy: one point per location transition
//     (tags location_id, reason; fields occupied, previous_occupied,
//     hold_count, lock_count)
//   - occupancy_sensor: one point per classified sensor edge
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	defer client.Close()
//
//	client.WriteOccupancyTransition(influxdb.OccupancyPoint{
//	    LocationID: "kitchen", Occupied: true, Reason: "event", Timestamp: now,
//	})
//
// Write errors arrive asynchronously through SetOnError.
package influxdb
