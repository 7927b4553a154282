package occupancy

import (
	"slices"
	"time"
)

// origin records why a location is being evaluated.
type origin int

const (
	originEvent    origin = iota // an external event addressed to this location
	originUpward                 // a contributing child changed and is occupied
	originDownward               // the parent changed and this location follows it
	originTimeout                // CheckTimeouts sweep
)

// reason maps an evaluation origin onto the transition reason tag.
func (o origin) reason() Reason {
	switch o {
	case originEvent:
		return ReasonEvent
	case originUpward, originDownward:
		return ReasonPropagation
	default:
		return ReasonTimeout
	}
}

// evaluate computes the next state of one location and commits it if any
// field differs. It reports whether the stored state was replaced.
func (e *Engine) evaluate(id string, event *Event, now time.Time, from origin, out *[]Transition) bool {
	cfg := e.configs[id]
	current := e.states[id]

	// Lock gate: only the lock family passes a frozen location.
	if current.IsLocked() && !passesLock(event) {
		if event == nil {
			e.logger.Debug("re-evaluation skipped (locked)", "location_id", id, "locked_by", current.LockedBy)
		} else {
			e.logger.Debug("event ignored (locked)",
				"location_id", id,
				"event_type", event.Type,
				"locked_by", current.LockedBy,
			)
		}
		return false
	}

	// Provisional fields. Slices are replaced, never written through.
	holds := current.Holds
	locks := current.LockedBy
	until := current.OccupiedUntil
	remaining := current.TimerRemaining
	suspended := current.TimerSuspended

	if event != nil {
		source := event.SourceID
		switch event.Type {
		case EventLock:
			locks = withMember(locks, source)
			if !until.IsZero() && !suspended {
				remaining = until.Sub(now)
				suspended = true
				until = time.Time{}
				e.logger.Debug("timer suspended", "location_id", id, "remaining", remaining)
			}

		case EventUnlock:
			if !current.LockedBySource(source) {
				e.logger.Debug("unlock ignored (source holds no lock)", "location_id", id, "source_id", source)
				break
			}
			locks = withoutMember(locks, source)
			if len(locks) == 0 && suspended {
				until, remaining, suspended = now.Add(remaining), 0, false
				e.logger.Debug("timer resumed", "location_id", id, "occupied_until", until)
			}

		case EventUnlockAll:
			locks = nil
			if suspended {
				until, remaining, suspended = now.Add(remaining), 0, false
				e.logger.Debug("timer resumed", "location_id", id, "occupied_until", until)
			}

		case EventHold:
			// A running timer keeps ticking underneath the hold.
			holds = withMember(holds, source)

		case EventRelease:
			if !current.HeldBy(source) {
				e.logger.Debug("release ignored (source holds nothing)", "location_id", id, "source_id", source)
				break
			}
			holds = withoutMember(holds, source)
			if len(holds) == 0 && !until.After(now) {
				until = now.Add(releaseTimeout(event, cfg))
			}

		case EventVacate:
			holds = nil
			until, remaining, suspended = time.Time{}, 0, false

		case EventTrigger:
			until = later(until, now.Add(triggerTimeout(event, cfg)))

		default:
			e.logger.Warn("unhandled event type", "location_id", id, "event_type", event.Type)
			return false
		}
	}

	if from == originUpward {
		until = later(until, now.Add(cfg.DefaultTimeout))
	}

	var occupied bool
	if len(locks) > 0 {
		occupied = current.Occupied
	} else {
		occupied = until.After(now) || len(holds) > 0
		if cfg.Strategy == StrategyFollowParent {
			if parent, ok := e.states[cfg.ParentID]; ok && parent.Occupied {
				occupied = true
				if parent.IsHeld() {
					// Mirror the parent's indefinite occupancy.
					until = time.Time{}
				}
			}
		}
	}

	if !occupied {
		holds = nil
		until, remaining, suspended = time.Time{}, 0, false
	}

	next := State{
		Occupied:       occupied,
		OccupiedUntil:  until,
		TimerRemaining: remaining,
		TimerSuspended: suspended,
		Holds:          holds,
		LockedBy:       locks,
	}
	if next.Equal(current) {
		return false
	}

	e.states[id] = next
	*out = append(*out, Transition{
		LocationID: id,
		Previous:   current,
		Current:    next,
		Reason:     from.reason(),
	})
	return true
}

// passesLock reports whether event may be processed on a locked location.
func passesLock(event *Event) bool {
	if event == nil {
		return false
	}
	switch event.Type {
	case EventLock, EventUnlock, EventUnlockAll:
		return true
	case EventTrigger, EventHold, EventRelease, EventVacate:
		return false
	default:
		return false
	}
}

// triggerTimeout is the event override or the location default.
func triggerTimeout(event *Event, cfg LocationConfig) time.Duration {
	if d, ok := event.timeoutOverride(); ok {
		return d
	}
	return cfg.DefaultTimeout
}

// releaseTimeout is the event override or the location trailing window.
func releaseTimeout(event *Event, cfg LocationConfig) time.Duration {
	if d, ok := event.timeoutOverride(); ok {
		return d
	}
	return cfg.HoldReleaseTimeout
}

// later returns the later of an existing expiry and a candidate. A zero
// existing expiry always loses.
func later(existing, candidate time.Time) time.Time {
	if existing.IsZero() || candidate.After(existing) {
		return candidate
	}
	return existing
}

// withMember returns a new sorted set containing s.
func withMember(set []string, s string) []string {
	if slices.Contains(set, s) {
		return set
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	out = append(out, s)
	slices.Sort(out)
	return out
}

// withoutMember returns a new set without s, or nil when it becomes empty.
func withoutMember(set []string, s string) []string {
	out := slices.DeleteFunc(slices.Clone(set), func(v string) bool { return v == s })
	if len(out) == 0 {
		return nil
	}
	return out
}
