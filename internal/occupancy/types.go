package occupancy

import (
	"fmt"
	"slices"
	"time"
)

// Default timeouts applied by configuration loaders when a location does
// not specify its own. The engine itself uses configured values verbatim.
const (
	// DefaultTriggerTimeout is how long a TRIGGER keeps a location occupied.
	DefaultTriggerTimeout = 5 * time.Minute

	// DefaultHoldReleaseTimeout is the trailing window after the last hold is released.
	DefaultHoldReleaseTimeout = 2 * time.Minute
)

// Strategy decides where a location's occupancy can come from.
type Strategy string

const (
	// StrategyIndependent locations are occupied only by their own signals
	// and by propagation from contributing children.
	StrategyIndependent Strategy = "independent"

	// StrategyFollowParent locations are additionally occupied whenever
	// their parent is occupied.
	StrategyFollowParent Strategy = "follow_parent"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyIndependent, StrategyFollowParent:
		return true
	default:
		return false
	}
}

// ParseStrategy converts a configuration string into a Strategy.
// The empty string maps to StrategyIndependent.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyIndependent, nil
	}
	st := Strategy(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
	}
	return st, nil
}

// EventType is the closed set of signals and commands the engine understands.
type EventType string

const (
	// EventTrigger is momentary activity: sets or extends the timer.
	EventTrigger EventType = "trigger"

	// EventHold asserts indefinite presence by the event's source.
	EventHold EventType = "hold"

	// EventRelease ends the source's hold and may start a trailing timer.
	EventRelease EventType = "release"

	// EventVacate forces immediate vacancy.
	EventVacate EventType = "vacate"

	// EventLock freezes the location on behalf of the source.
	EventLock EventType = "lock"

	// EventUnlock removes the source's own freeze.
	EventUnlock EventType = "unlock"

	// EventUnlockAll clears every freeze regardless of source.
	EventUnlockAll EventType = "unlock_all"
)

// AllEventTypes returns every event type in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventTrigger,
		EventHold,
		EventRelease,
		EventVacate,
		EventLock,
		EventUnlock,
		EventUnlockAll,
	}
}

// ParseEventType converts a wire string into an EventType.
func ParseEventType(s string) (EventType, error) {
	et := EventType(s)
	if !slices.Contains(AllEventTypes(), et) {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return et, nil
}

// IsCommand reports whether the type belongs to the command family
// (vacate and the lock family) rather than the signal family.
func (t EventType) IsCommand() bool {
	switch t {
	case EventVacate, EventLock, EventUnlock, EventUnlockAll:
		return true
	case EventTrigger, EventHold, EventRelease:
		return false
	default:
		return false
	}
}

// LocationConfig is the static occupancy configuration of one location.
// The set of configs is fixed for an engine's lifetime.
type LocationConfig struct {
	// ID uniquely identifies the location.
	ID string

	// ParentID is the containing location, or empty for a root.
	ParentID string

	// Strategy selects independent or parent-following occupancy.
	Strategy Strategy

	// ContributesToParent lets this location's occupancy bubble up.
	ContributesToParent bool

	// DefaultTimeout is the TRIGGER timeout and the propagation extension.
	DefaultTimeout time.Duration

	// HoldReleaseTimeout is the trailing window after the last hold ends.
	HoldReleaseTimeout time.Duration
}

// State is the runtime snapshot of one location.
//
// State is a value: the engine never modifies a State it has handed out.
// Holds and LockedBy are sorted and must be treated as read-only by callers.
type State struct {
	// Occupied is the derived occupancy.
	Occupied bool

	// OccupiedUntil is the running timer's expiry. Zero means no running timer
	// (vacant, indefinitely held, or suspended under lock).
	OccupiedUntil time.Time

	// TimerRemaining is the time that was left when a lock suspended the timer.
	// Only meaningful when TimerSuspended is true.
	TimerRemaining time.Duration

	// TimerSuspended is true while a lock holds a suspended timer.
	TimerSuspended bool

	// Holds are the sources currently asserting indefinite presence.
	Holds []string

	// LockedBy are the sources that have frozen this location.
	LockedBy []string
}

// IsLocked reports whether any source has frozen the location.
func (s State) IsLocked() bool {
	return len(s.LockedBy) > 0
}

// IsHeld reports whether any hold is active.
func (s State) IsHeld() bool {
	return len(s.Holds) > 0
}

// HasTimer reports whether a timer is currently running.
func (s State) HasTimer() bool {
	return !s.OccupiedUntil.IsZero()
}

// HeldBy reports whether source has an active hold.
func (s State) HeldBy(source string) bool {
	return slices.Contains(s.Holds, source)
}

// LockedBySource reports whether source holds a lock.
func (s State) LockedBySource(source string) bool {
	return slices.Contains(s.LockedBy, source)
}

// IsDefault reports whether the state is vacant, unlocked and carries no
// holds or timers. Default states are omitted from snapshots.
func (s State) IsDefault() bool {
	return !s.Occupied && !s.IsLocked() && !s.IsHeld() && !s.HasTimer() && !s.TimerSuspended
}

// Equal reports whether every field of s and o matches.
func (s State) Equal(o State) bool {
	return s.Occupied == o.Occupied &&
		s.OccupiedUntil.Equal(o.OccupiedUntil) &&
		s.TimerSuspended == o.TimerSuspended &&
		(!s.TimerSuspended || s.TimerRemaining == o.TimerRemaining) &&
		slices.Equal(s.Holds, o.Holds) &&
		slices.Equal(s.LockedBy, o.LockedBy)
}

// Event is one signal or command addressed to a location.
type Event struct {
	LocationID string
	Type       EventType

	// SourceID identifies the origin of the signal; it is the key for holds and locks.
	SourceID string

	Timestamp time.Time

	// Timeout overrides the location's TRIGGER or trailing timeout when
	// positive, or whenever TimeoutSet is true. An explicit zero grants no
	// time at all: a RELEASE of the last hold then vacates immediately.
	Timeout    time.Duration
	TimeoutSet bool
}

// timeoutOverride returns the event's timeout override, if it carries one.
func (e *Event) timeoutOverride() (time.Duration, bool) {
	return e.Timeout, e.TimeoutSet || e.Timeout > 0
}

// Reason explains why a transition happened.
type Reason string

const (
	ReasonEvent       Reason = "event"
	ReasonPropagation Reason = "propagation"
	ReasonTimeout     Reason = "timeout"
)

// Transition records one state replacement.
type Transition struct {
	LocationID string
	Previous   State
	Current    State
	Reason     Reason
}

// OccupancyChanged reports whether the transition flipped occupancy.
func (t Transition) OccupancyChanged() bool {
	return t.Previous.Occupied != t.Current.Occupied
}

// Result is what every mutating engine call returns.
type Result struct {
	// NextExpiration is the earliest future instant at which some location
	// could change purely from time passing. Zero when no timer is running.
	NextExpiration time.Time

	// Transitions are the state replacements in the order they happened.
	Transitions []Transition
}

// Changed reports whether any location's state was replaced.
func (r Result) Changed() bool {
	return len(r.Transitions) > 0
}
