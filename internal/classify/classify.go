package classify

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// ErrUnknownKind is returned when parsing an unrecognised sensor kind.
var ErrUnknownKind = errors.New("classify: unknown sensor kind")

// ErrDuplicateBinding is returned when a device is bound twice.
var ErrDuplicateBinding = errors.New("classify: duplicate device binding")

// Kind is the classification policy applied to a device.
type Kind string

const (
	KindMotion   Kind = "motion"
	KindPresence Kind = "presence"
	KindMedia    Kind = "media"
	KindContact  Kind = "contact"
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindMotion, KindPresence, KindMedia, KindContact:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// defaultKeys are the state fields read when a binding has no StateKey,
// tried in order.
var defaultKeys = map[Kind][]string{
	KindMotion:   {"motion", "occupancy", "on"},
	KindPresence: {"presence", "occupancy", "on"},
	KindMedia:    {"playing", "state", "on"},
	KindContact:  {"contact", "open", "on"},
}

// Binding maps one device onto the location it observes.
type Binding struct {
	DeviceID   string
	LocationID string
	Kind       Kind

	// StateKey overrides the kind's default state field.
	StateKey string

	// Timeout overrides the location's trigger or trailing timeout when positive.
	Timeout time.Duration
}

// Signal is one raw state report from a device.
type Signal struct {
	DeviceID  string
	State     map[string]any
	Timestamp time.Time
}

// Logger defines the logging interface used by the Classifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Classifier applies bindings to signals with per-device edge detection.
//
// Thread Safety: all methods are safe for concurrent use.
type Classifier struct {
	mu       sync.Mutex
	bindings map[string]Binding
	last     map[string]bool
	logger   Logger
}

// New creates a classifier for a fixed set of bindings.
func New(bindings []Binding) (*Classifier, error) {
	c := &Classifier{
		bindings: make(map[string]Binding, len(bindings)),
		last:     make(map[string]bool),
		logger:   noopLogger{},
	}
	for _, b := range bindings {
		if b.DeviceID == "" || b.LocationID == "" {
			return nil, fmt.Errorf("classify: binding needs device and location (device %q)", b.DeviceID)
		}
		if _, err := ParseKind(string(b.Kind)); err != nil {
			return nil, err
		}
		if _, dup := c.bindings[b.DeviceID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBinding, b.DeviceID)
		}
		c.bindings[b.DeviceID] = b
	}
	return c, nil
}

// SetLogger sets the logger for the classifier.
func (c *Classifier) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// Binding returns the binding of a device.
func (c *Classifier) Binding(deviceID string) (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[deviceID]
	return b, ok
}

// Bindings returns every binding sorted by device ID.
func (c *Classifier) Bindings() []Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Binding, 0, len(c.bindings))
	for _, id := range slices.Sorted(maps.Keys(c.bindings)) {
		out = append(out, c.bindings[id])
	}
	return out
}

// Reset forgets the last value seen for every device, so the next reading
// of each is treated as a fresh edge.
func (c *Classifier) Reset() {
	c.mu.Lock()
	clear(c.last)
	c.mu.Unlock()
}

// Classify converts a signal into zero or more engine events.
//
// Returns:
//   - []occupancy.Event: Events to feed the engine (empty when nothing changed)
//   - bool: false if the device is unbound or its state carries no usable value
func (c *Classifier) Classify(sig Signal) ([]occupancy.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bindings[sig.DeviceID]
	if !ok {
		return nil, false
	}
	active, ok := extract(b, sig.State)
	if !ok {
		c.logger.Debug("no usable value in device state", "device_id", sig.DeviceID, "kind", b.Kind)
		return nil, false
	}

	previous := c.last[sig.DeviceID]
	c.last[sig.DeviceID] = active
	if active == previous {
		return nil, true
	}

	var eventType occupancy.EventType
	switch b.Kind {
	case KindMotion:
		if !active {
			return nil, true
		}
		eventType = occupancy.EventTrigger
	case KindPresence, KindMedia:
		eventType = occupancy.EventRelease
		if active {
			eventType = occupancy.EventHold
		}
	case KindContact:
		eventType = occupancy.EventTrigger
	default:
		return nil, false
	}

	ev := occupancy.Event{
		LocationID: b.LocationID,
		Type:       eventType,
		SourceID:   b.DeviceID,
		Timestamp:  sig.Timestamp,
		Timeout:    b.Timeout,
	}
	c.logger.Debug("signal classified",
		"device_id", b.DeviceID,
		"location_id", b.LocationID,
		"event_type", eventType,
		"active", active,
	)
	return []occupancy.Event{ev}, true
}

// extract reads the binding's boolean value out of a state map.
func extract(b Binding, state map[string]any) (bool, bool) {
	keys := defaultKeys[b.Kind]
	if b.StateKey != "" {
		keys = []string{b.StateKey}
	}
	for _, k := range keys {
		if v, ok := state[k]; ok {
			return toBool(v)
		}
	}
	return false, false
}

// toBool interprets common sensor encodings as active/inactive.
func toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	case int64:
		return val != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "on", "true", "open", "opened", "playing", "detected", "occupied", "home":
			return true, true
		case "off", "false", "closed", "idle", "paused", "stopped", "clear", "vacant", "away", "standby":
			return false, true
		}
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return n != 0, true
		}
	}
	return false, false
}
