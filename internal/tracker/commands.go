package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// Handle applies one event to the engine.
//
// The event's Timestamp is informational; the engine is driven by the
// tracker's clock. Events for unknown locations are rejected.
func (t *Tracker) Handle(ctx context.Context, event occupancy.Event) (occupancy.Result, error) {
	if _, ok := t.engine.Config(event.LocationID); !ok {
		return occupancy.Result{}, fmt.Errorf("%w: %s", ErrUnknownLocation, event.LocationID)
	}
	if _, err := occupancy.ParseEventType(string(event.Type)); err != nil {
		return occupancy.Result{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if event.Timeout < 0 {
		return occupancy.Result{}, fmt.Errorf("%w: negative timeout", ErrInvalidCommand)
	}

	r := t.apply(ctx, func(now time.Time) occupancy.Result {
		if event.Timestamp.IsZero() {
			event.Timestamp = now
		}
		return t.engine.HandleEvent(event, now)
	})
	if event.Type.IsCommand() {
		t.logger.Info("occupancy command applied",
			"location_id", event.LocationID,
			"command", event.Type,
			"source_id", event.SourceID,
			"transitions", len(r.Transitions),
		)
	}
	return r, nil
}

func (t *Tracker) command(ctx context.Context, id string, typ occupancy.EventType, source string, timeout time.Duration) (occupancy.Result, error) {
	return t.Handle(ctx, occupancy.Event{
		LocationID: id,
		Type:       typ,
		SourceID:   source,
		Timeout:    timeout,
	})
}

// Trigger records activity. A zero timeout uses the location default.
func (t *Tracker) Trigger(ctx context.Context, id, source string, timeout time.Duration) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventTrigger, source, timeout)
}

// Hold adds an indefinite presence hold for source.
func (t *Tracker) Hold(ctx context.Context, id, source string) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventHold, source, 0)
}

// Release removes source's hold. A zero trailing timeout uses the
// location's hold-release default.
func (t *Tracker) Release(ctx context.Context, id, source string, trailing time.Duration) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventRelease, source, trailing)
}

// Vacate forces a location vacant unless it is locked.
func (t *Tracker) Vacate(ctx context.Context, id, source string) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventVacate, source, 0)
}

// Lock freezes a location's state on behalf of source.
func (t *Tracker) Lock(ctx context.Context, id, source string) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventLock, source, 0)
}

// Unlock removes source's lock.
func (t *Tracker) Unlock(ctx context.Context, id, source string) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventUnlock, source, 0)
}

// UnlockAll clears every lock on a location.
func (t *Tracker) UnlockAll(ctx context.Context, id, source string) (occupancy.Result, error) {
	return t.command(ctx, id, occupancy.EventUnlockAll, source, 0)
}

// VacateArea vacates a location and all its descendants.
func (t *Tracker) VacateArea(ctx context.Context, id, source string, includeLocked bool) (occupancy.Result, error) {
	if _, ok := t.engine.Config(id); !ok {
		return occupancy.Result{}, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	return t.apply(ctx, func(now time.Time) occupancy.Result {
		return t.engine.VacateArea(id, source, now, includeLocked)
	}), nil
}

// CheckTimeouts expires every timer that has run out. The wake-up timer
// calls this; hosts may also call it directly.
func (t *Tracker) CheckTimeouts(ctx context.Context) occupancy.Result {
	return t.apply(ctx, t.engine.CheckTimeouts)
}

// State returns a location's current state.
func (t *Tracker) State(id string) (occupancy.State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.State(id)
}

// States returns a copy of every location's state.
func (t *Tracker) States() map[string]occupancy.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.States()
}

// EffectiveTimeout returns when the location's subtree is expected to
// become vacant. It reports false when no timer is running below it.
func (t *Tracker) EffectiveTimeout(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.EffectiveTimeout(id, t.now())
}

// NextWake returns the instant the wake-up timer is armed for.
func (t *Tracker) NextWake() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wakeAt, !t.wakeAt.IsZero()
}
