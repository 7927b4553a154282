// Package tracker hosts the occupancy engine for the running service.
//
// The engine is a pure state machine: it never reads the clock, never
// sleeps and never performs I/O. Tracker supplies all of that around it:
//
//   - a single mutex serialising every engine call
//   - one clock read per entry point, passed to the engine as "now"
//   - a single wake-up timer armed at the engine's next expiration
//   - publication of every transition on MQTT (retained state + event)
//   - an InfluxDB point per transition
//   - snapshot persistence on change and at shutdown, restore at start
//   - MQTT ingestion of bridge state (through the classifier) and commands
//
// Publication and recording failures are logged and never surface to
// the caller; only invalid input does.
//
// Usage:
//
//	t, err := tracker.New(tracker.Options{
//	    Engine:     engine,
//	    Classifier: classifier,
//	    Publisher:  mqttClient,
//	    Recorder:   influxClient,
//	    Store:      snapshot.NewStore(db.DB),
//	    Logger:     logger.Component("tracker"),
//	})
//	if err := t.Start(ctx); err != nil {
//	    return err
//	}
//	defer t.Stop(context.Background())
//	err = t.Subscribe(ctx, mqttClient)
package tracker
