package tracker

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// ReasonStartup marks the retained state published by Start for every
// location, including those with no transition.
const ReasonStartup occupancy.Reason = "startup"

// OccupancyChanged is the notification published for a location's state.
//
// It is sent retained on graylogic/core/occupancy/{id}/state and, for
// transitions, on graylogic/core/event/occupancy_changed.
type OccupancyChanged struct {
	EventID          string              `json:"event_id"`
	LocationID       string              `json:"location_id"`
	Occupied         bool                `json:"occupied"`
	PreviousOccupied bool                `json:"previous_occupied"`
	Holds            []string            `json:"holds"`
	Locks            []string            `json:"locks"`
	OccupiedUntil    occupancy.Timestamp `json:"occupied_until"`
	TimerRemaining   occupancy.Seconds   `json:"timer_remaining"`
	Reason           occupancy.Reason    `json:"reason"`
	Timestamp        time.Time           `json:"timestamp"`
}

// Scope returns the location the notification belongs to.
func (m OccupancyChanged) Scope() string { return m.LocationID }

func newOccupancyChanged(id string, previous, current occupancy.State, reason occupancy.Reason, now time.Time) OccupancyChanged {
	msg := OccupancyChanged{
		EventID:          uuid.NewString(),
		LocationID:       id,
		Occupied:         current.Occupied,
		PreviousOccupied: previous.Occupied,
		Holds:            nonNil(current.Holds),
		Locks:            nonNil(current.LockedBy),
		Reason:           reason,
		Timestamp:        now.UTC(),
	}
	if current.HasTimer() {
		msg.OccupiedUntil = occupancy.Timestamp{Time: current.OccupiedUntil.UTC(), Valid: true}
	}
	if current.TimerSuspended {
		msg.TimerRemaining = occupancy.Seconds{Duration: current.TimerRemaining, Valid: true}
	}
	return msg
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// ChannelOccupancyChanged is the live-feed channel transitions are
// broadcast on.
const ChannelOccupancyChanged = "occupancy.changed"

// publishTransition sends one transition on the state and event topics
// and to the live feed.
// Must be called with t.mu held.
func (t *Tracker) publishTransition(tr occupancy.Transition, now time.Time) {
	if t.pub == nil && t.feed == nil {
		return
	}
	msg := newOccupancyChanged(tr.LocationID, tr.Previous, tr.Current, tr.Reason, now)

	if t.feed != nil {
		t.feed.Broadcast(ChannelOccupancyChanged, msg)
	}
	if t.pub == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		t.logger.Error("encoding occupancy notification", "location_id", tr.LocationID, "error", err)
		return
	}

	topics := mqtt.Topics{}
	t.send(topics.OccupancyState(tr.LocationID), payload, true)
	t.send(topics.CoreEvent(mqtt.EventOccupancyChanged), payload, false)

	log := t.logger.Debug
	if tr.OccupancyChanged() {
		log = t.logger.Info
	}
	log("occupancy published",
		"location_id", tr.LocationID,
		"occupied", tr.Current.Occupied,
		"reason", tr.Reason,
	)
}

// publishAll sends the retained state of every location.
// Must be called with t.mu held.
func (t *Tracker) publishAll(now time.Time) {
	if t.pub == nil {
		return
	}
	topics := mqtt.Topics{}
	for _, id := range t.engine.Locations() {
		st, _ := t.engine.State(id)
		payload, err := json.Marshal(newOccupancyChanged(id, st, st, ReasonStartup, now))
		if err != nil {
			t.logger.Error("encoding occupancy state", "location_id", id, "error", err)
			continue
		}
		t.send(topics.OccupancyState(id), payload, true)
	}
}

func (t *Tracker) send(topic string, payload []byte, retained bool) {
	if err := t.pub.Publish(topic, payload, t.qos, retained); err != nil {
		t.logger.Warn("occupancy publish failed", "topic", topic, "error", err)
	}
}

// recordTransition writes one point to the time-series store.
// Must be called with t.mu held.
func (t *Tracker) recordTransition(tr occupancy.Transition, now time.Time) {
	if t.rec == nil {
		return
	}
	t.rec.WriteOccupancyTransition(influxdb.OccupancyPoint{
		LocationID:       tr.LocationID,
		Occupied:         tr.Current.Occupied,
		PreviousOccupied: tr.Previous.Occupied,
		Reason:           string(tr.Reason),
		Holds:            len(tr.Current.Holds),
		Locks:            len(tr.Current.LockedBy),
		Timestamp:        now,
	})
}

// persist saves the current snapshot. Failures are logged.
// Must be called with t.mu held.
func (t *Tracker) persist(ctx context.Context, now time.Time) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, t.engine.Export(), now); err != nil {
		t.logger.Warn("occupancy snapshot save failed", "error", err)
	}
}
