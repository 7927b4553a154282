package occupancy

import (
	"fmt"
	"slices"
	"time"
)

// Logger defines the logging interface used by the Engine.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine is the occupancy state engine.
//
// It owns two maps: the immutable config index (with its derived
// parent→children index) and the runtime state store. The state store is
// written only by the evaluation algorithm and by Restore.
//
// Thread Safety: not safe for concurrent use; callers serialise access.
type Engine struct {
	configs  map[string]LocationConfig
	order    []string            // config order, used for deterministic iteration
	children map[string][]string // parent ID -> child IDs in config order
	states   map[string]State
	logger   Logger
}

// NewEngine builds an engine from a fixed set of location configs.
// Every configured location starts vacant.
//
// A ParentID that names an unconfigured location is accepted and treated as
// "no parent". Topology changes require building a new engine.
//
// Parameters:
//   - configs: Static per-location configuration
//
// Returns:
//   - *Engine: Engine with every location vacant
//   - error: ErrInvalidConfig, ErrDuplicateLocation or ErrCyclicTopology
func NewEngine(configs []LocationConfig) (*Engine, error) {
	e := &Engine{
		configs:  make(map[string]LocationConfig, len(configs)),
		order:    make([]string, 0, len(configs)),
		children: make(map[string][]string),
		states:   make(map[string]State, len(configs)),
		logger:   noopLogger{},
	}

	for _, c := range configs {
		if err := validateConfig(c); err != nil {
			return nil, err
		}
		if _, exists := e.configs[c.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLocation, c.ID)
		}
		e.configs[c.ID] = c
		e.order = append(e.order, c.ID)
		e.states[c.ID] = State{}
	}

	for _, id := range e.order {
		parent := e.configs[id].ParentID
		if _, ok := e.configs[parent]; ok {
			e.children[parent] = append(e.children[parent], id)
		}
	}

	if err := e.checkAcyclic(); err != nil {
		return nil, err
	}

	return e, nil
}

// validateConfig checks a single config in isolation.
func validateConfig(c LocationConfig) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty location id", ErrInvalidConfig)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("%w: location %s: unknown strategy %q", ErrInvalidConfig, c.ID, c.Strategy)
	}
	if c.DefaultTimeout < 0 || c.HoldReleaseTimeout < 0 {
		return fmt.Errorf("%w: location %s: negative timeout", ErrInvalidConfig, c.ID)
	}
	return nil
}

// checkAcyclic walks every parent chain; a chain longer than the number of
// locations must revisit one.
func (e *Engine) checkAcyclic() error {
	for _, id := range e.order {
		seen := map[string]bool{id: true}
		cur := e.configs[id].ParentID
		for {
			if _, ok := e.configs[cur]; !ok {
				break
			}
			if seen[cur] {
				return fmt.Errorf("%w: %s is its own ancestor", ErrCyclicTopology, cur)
			}
			seen[cur] = true
			cur = e.configs[cur].ParentID
		}
	}
	return nil
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// HandleEvent applies one event and any propagation it causes.
//
// Events for unknown locations are logged and ignored; the result still
// carries a valid next expiration.
//
// Parameters:
//   - event: The signal or command to apply
//   - now: Current time as seen by the host
//
// Returns:
//   - Result: Transitions in order plus the next expiration
func (e *Engine) HandleEvent(event Event, now time.Time) Result {
	if _, ok := e.configs[event.LocationID]; !ok {
		e.logger.Warn("event for unknown location",
			"location_id", event.LocationID,
			"event_type", event.Type,
			"source_id", event.SourceID,
		)
		return e.result(now, nil)
	}

	e.logger.Debug("handling event",
		"location_id", event.LocationID,
		"event_type", event.Type,
		"source_id", event.SourceID,
	)

	var transitions []Transition
	e.update(event.LocationID, &event, now, originEvent, &transitions)
	return e.result(now, transitions)
}

// CheckTimeouts re-evaluates every location with no event. This is how the
// passage of time reaches the engine; the host decides when to call it.
func (e *Engine) CheckTimeouts(now time.Time) Result {
	var transitions []Transition
	for _, id := range e.order {
		e.update(id, nil, now, originTimeout, &transitions)
	}
	return e.result(now, transitions)
}

// NextExpiration returns the earliest future timer expiry across all
// locations that are neither locked nor held.
//
// Returns:
//   - time.Time: Earliest expiry (zero if none)
//   - bool: false when no location has a running timer
func (e *Engine) NextExpiration(now time.Time) (time.Time, bool) {
	var next time.Time
	for _, id := range e.order {
		st := e.states[id]
		if st.IsLocked() || st.IsHeld() {
			continue
		}
		if !st.OccupiedUntil.After(now) {
			continue
		}
		if next.IsZero() || st.OccupiedUntil.Before(next) {
			next = st.OccupiedUntil
		}
	}
	return next, !next.IsZero()
}

// result packages transitions with the current next expiration.
func (e *Engine) result(now time.Time, transitions []Transition) Result {
	next, _ := e.NextExpiration(now)
	for _, t := range transitions {
		e.logger.Debug("occupancy transition",
			"location_id", t.LocationID,
			"occupied", t.Current.Occupied,
			"previous_occupied", t.Previous.Occupied,
			"reason", t.Reason,
		)
	}
	return Result{NextExpiration: next, Transitions: transitions}
}

// update evaluates one location and, if its state changed, re-enters itself
// for the contributing parent (upward) and for follower children (downward).
// Recursion depth is bounded by the tree depth.
func (e *Engine) update(id string, event *Event, now time.Time, from origin, out *[]Transition) {
	if !e.evaluate(id, event, now, from, out) {
		return
	}

	cfg := e.configs[id]
	current := e.states[id]

	// Vacancy never propagates upward.
	if cfg.ContributesToParent && current.Occupied && e.hasLocation(cfg.ParentID) {
		e.logger.Debug("propagating to parent", "location_id", id, "parent_id", cfg.ParentID)
		e.update(cfg.ParentID, nil, now, originUpward, out)
	}

	for _, child := range e.children[id] {
		if e.configs[child].Strategy == StrategyFollowParent {
			e.update(child, nil, now, originDownward, out)
		}
	}
}

// hasLocation reports whether id is configured.
func (e *Engine) hasLocation(id string) bool {
	_, ok := e.configs[id]
	return ok
}

// State returns the current state of a location.
func (e *Engine) State(id string) (State, bool) {
	st, ok := e.states[id]
	return st, ok
}

// States returns a copy of every location's current state.
func (e *Engine) States() map[string]State {
	out := make(map[string]State, len(e.states))
	for id, st := range e.states {
		out[id] = st
	}
	return out
}

// Config returns the static config of a location.
func (e *Engine) Config(id string) (LocationConfig, bool) {
	c, ok := e.configs[id]
	return c, ok
}

// Locations returns every configured location ID in config order.
func (e *Engine) Locations() []string {
	return slices.Clone(e.order)
}

// Descendants returns every descendant of a location in pre-order.
func (e *Engine) Descendants(id string) []string {
	var out []string
	for _, child := range e.children[id] {
		out = append(out, child)
		out = append(out, e.Descendants(child)...)
	}
	return out
}
