package occupancy

import "time"

// EffectiveTimeout returns when a location and all of its descendants will
// truly be vacant, assuming no new signals arrive.
//
// It is a read-only query and does not touch engine state.
//
// Returns:
//   - time.Time: Latest expiry across the subtree
//   - bool: false if the location is vacant or unknown, if the location or
//     any occupied descendant is held or locked (indefinite), or if no
//     location in the subtree has a running timer
func (e *Engine) EffectiveTimeout(id string, now time.Time) (time.Time, bool) {
	st, ok := e.states[id]
	if !ok || !st.Occupied {
		return time.Time{}, false
	}
	latest, indefinite := e.subtreeExpiry(id)
	if indefinite || latest.IsZero() {
		return time.Time{}, false
	}
	return latest, true
}

// subtreeExpiry computes the latest expiry below and including id, and
// whether some occupied member of the subtree is indefinitely occupied.
// Vacant members contribute nothing.
func (e *Engine) subtreeExpiry(id string) (time.Time, bool) {
	st := e.states[id]
	if !st.Occupied {
		return time.Time{}, false
	}
	if st.IsHeld() || st.IsLocked() {
		return time.Time{}, true
	}

	latest := st.OccupiedUntil
	for _, child := range e.children[id] {
		childLatest, indefinite := e.subtreeExpiry(child)
		if indefinite {
			return time.Time{}, true
		}
		if childLatest.After(latest) {
			latest = childLatest
		}
	}
	return latest, false
}

// VacateArea force-vacates a location and every descendant, in pre-order.
//
// Locked locations are skipped unless includeLocked is set, in which case
// they are first unlocked (UNLOCK_ALL) and then vacated. The synthetic
// commands carry sourceID. No propagation is performed: the whole subtree
// is addressed explicitly.
//
// Parameters:
//   - id: Root of the subtree
//   - sourceID: Origin of the request, recorded on the synthetic commands
//   - now: Current time
//   - includeLocked: Also clear locked locations
//
// Returns:
//   - Result: Every transition produced, plus the next expiration
func (e *Engine) VacateArea(id, sourceID string, now time.Time, includeLocked bool) Result {
	if !e.hasLocation(id) {
		e.logger.Warn("vacate for unknown location", "location_id", id, "source_id", sourceID)
		return e.result(now, nil)
	}

	e.logger.Debug("vacating area",
		"location_id", id,
		"source_id", sourceID,
		"include_locked", includeLocked,
	)

	var transitions []Transition
	for _, loc := range append([]string{id}, e.Descendants(id)...) {
		if e.states[loc].IsLocked() {
			if !includeLocked {
				e.logger.Debug("vacate skipped (locked)", "location_id", loc, "locked_by", e.states[loc].LockedBy)
				continue
			}
			unlock := Event{LocationID: loc, Type: EventUnlockAll, SourceID: sourceID, Timestamp: now}
			e.evaluate(loc, &unlock, now, originEvent, &transitions)
		}
		vacate := Event{LocationID: loc, Type: EventVacate, SourceID: sourceID, Timestamp: now}
		e.evaluate(loc, &vacate, now, originEvent, &transitions)
	}

	return e.result(now, transitions)
}
