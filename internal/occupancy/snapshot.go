package occupancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"
)

// Snapshot is the plain serialisable form of the engine's runtime state,
// keyed by location ID. Only non-default states are included.
//
// The JSON shape is part of the upgrade contract and must stay stable:
//
//	{"kitchen": {"is_occupied": true, "occupied_until": "2025-01-15T12:05:00Z",
//	             "timer_remaining": null, "active_holds": [], "locked_by": []}}
type Snapshot map[string]SnapshotEntry

// SnapshotEntry is one location's persisted state.
type SnapshotEntry struct {
	IsOccupied     bool      `json:"is_occupied"`
	OccupiedUntil  Timestamp `json:"occupied_until"`
	TimerRemaining Seconds   `json:"timer_remaining"`
	ActiveHolds    []string  `json:"active_holds"`
	LockedBy       []string  `json:"locked_by"`
}

// Timestamp is a nullable instant encoded as ISO-8601 text.
// Malformed input decodes as absent rather than failing.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// zoneless layouts accept ISO text written without an offset; read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// MarshalJSON encodes the instant as RFC 3339 text, or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON never fails; anything that is not a parseable timestamp
// string becomes an absent value.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = Timestamp{Time: parsed, Valid: true}
		return nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = Timestamp{Time: parsed, Valid: true}
			return nil
		}
	}
	return nil
}

// Seconds is a nullable duration encoded as a number of seconds.
// Malformed input decodes as absent rather than failing.
type Seconds struct {
	Duration time.Duration
	Valid    bool
}

// MarshalJSON encodes the duration as fractional seconds, or null.
func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Duration.Seconds())
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	*s = Seconds{}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		var text string
		if json.Unmarshal(data, &text) != nil {
			return nil
		}
		parsed, perr := strconv.ParseFloat(text, 64)
		if perr != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*s = Seconds{Duration: time.Duration(f * float64(time.Second)), Valid: true}
	return nil
}

// UnmarshalJSON decodes one entry field by field so that a single bad
// field does not discard the rest.
func (e *SnapshotEntry) UnmarshalJSON(data []byte) error {
	*e = SnapshotEntry{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	if raw, ok := fields["is_occupied"]; ok {
		_ = json.Unmarshal(raw, &e.IsOccupied) //nolint:errcheck // malformed means absent
	}
	if raw, ok := fields["occupied_until"]; ok {
		_ = e.OccupiedUntil.UnmarshalJSON(raw) //nolint:errcheck // never fails
	}
	if raw, ok := fields["timer_remaining"]; ok {
		_ = e.TimerRemaining.UnmarshalJSON(raw) //nolint:errcheck // never fails
	}
	e.ActiveHolds = decodeSet(fields["active_holds"])
	e.LockedBy = decodeSet(fields["locked_by"])
	return nil
}

// decodeSet reads a list of strings, skipping non-string members.
func decodeSet(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MarshalSnapshot encodes a snapshot as JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes snapshot JSON. Only a payload that is not a JSON
// object is an error; malformed entries and fields degrade to absent values.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidSnapshot
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	snap := make(Snapshot, len(raw))
	for id, entryRaw := range raw {
		if t := bytes.TrimSpace(entryRaw); len(t) == 0 || t[0] != '{' {
			continue
		}
		var entry SnapshotEntry
		_ = entry.UnmarshalJSON(entryRaw) //nolint:errcheck // never fails
		snap[id] = entry
	}
	return snap, nil
}

// Export returns every non-default state in snapshot form.
func (e *Engine) Export() Snapshot {
	snap := make(Snapshot)
	for _, id := range e.order {
		st := e.states[id]
		if st.IsDefault() {
			continue
		}
		entry := SnapshotEntry{
			IsOccupied:  st.Occupied,
			ActiveHolds: append([]string{}, st.Holds...),
			LockedBy:    append([]string{}, st.LockedBy...),
		}
		if st.HasTimer() {
			entry.OccupiedUntil = Timestamp{Time: st.OccupiedUntil, Valid: true}
		}
		if st.TimerSuspended {
			entry.TimerRemaining = Seconds{Duration: st.TimerRemaining, Valid: true}
		}
		snap[id] = entry
	}
	return snap
}

// Restore replaces runtime state from a snapshot, applying the staleness
// policy against now:
//
//  1. locked entries restore as-is (locks are timeless)
//  2. held entries restore occupied with holds intact
//  3. entries whose expiry already passed restore vacant
//  4. everything else restores as-is
//
// Unknown location IDs are ignored. Locations absent from the snapshot keep
// their current state. Restore emits no transitions; hosts normally follow
// it with CheckTimeouts.
//
// Returns:
//   - int: Number of entries applied
func (e *Engine) Restore(snap Snapshot, now time.Time) int {
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	applied := 0
	for _, id := range ids {
		if !e.hasLocation(id) {
			e.logger.Debug("snapshot entry for unknown location ignored", "location_id", id)
			continue
		}
		st := restoreEntry(snap[id], now)
		e.states[id] = st
		applied++
		e.logger.Debug("state restored",
			"location_id", id,
			"occupied", st.Occupied,
			"locked", st.IsLocked(),
		)
	}
	return applied
}

// restoreEntry applies the staleness policy to one entry.
func restoreEntry(entry SnapshotEntry, now time.Time) State {
	locks := normaliseSet(entry.LockedBy)
	holds := normaliseSet(entry.ActiveHolds)
	occupied := entry.IsOccupied

	var until time.Time
	if entry.OccupiedUntil.Valid {
		until = entry.OccupiedUntil.Time
	}
	suspended := entry.TimerRemaining.Valid
	remaining := entry.TimerRemaining.Duration

	switch {
	case len(locks) > 0:
	case len(holds) > 0:
		occupied = true
	case !until.IsZero() && until.Before(now):
		return State{}
	}

	// Never carry both a running and a suspended timer.
	if !until.IsZero() && suspended {
		if len(locks) > 0 {
			until = time.Time{}
		} else {
			suspended, remaining = false, 0
		}
	}
	if suspended && len(locks) == 0 {
		suspended, remaining = false, 0
	}
	if !suspended {
		remaining = 0
	}

	if !occupied {
		return State{LockedBy: locks}
	}

	return State{
		Occupied:       true,
		OccupiedUntil:  until,
		TimerRemaining: remaining,
		TimerSuspended: suspended,
		Holds:          holds,
		LockedBy:       locks,
	}
}

// normaliseSet sorts and de-duplicates a source list.
func normaliseSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
