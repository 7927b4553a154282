package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// CommandVacateArea is the command name for VacateArea; every other
// command name is an occupancy event type.
const CommandVacateArea = "vacate_area"

// defaultCommandSource is used when a command carries no source_id.
const defaultCommandSource = "mqtt"

// Command is the payload on graylogic/core/occupancy/{id}/command.
//
//	{"command": "lock", "source_id": "scene:movie"}
//	{"command": "trigger", "source_id": "panel", "timeout": 600}
//	{"command": "vacate_area", "include_locked": true}
type Command struct {
	Command  string `json:"command"`
	SourceID string `json:"source_id"`
	// Timeout in seconds for trigger and release. Absent uses the location
	// default; an explicit 0 grants no time.
	Timeout       *float64 `json:"timeout,omitempty"`
	IncludeLocked bool     `json:"include_locked"`
}

// Actor identifies who issued a command, for the audit trail.
type Actor struct {
	Origin  string // audit.OriginAPI, audit.OriginMQTT or audit.OriginLocal
	Subject string // authenticated caller, when known
}

// Execute runs a command against one location on behalf of the host.
func (t *Tracker) Execute(ctx context.Context, locationID string, cmd Command) (occupancy.Result, error) {
	return t.ExecuteAs(ctx, locationID, cmd, Actor{Origin: audit.OriginLocal})
}

// ExecuteAs runs a command against one location and, when an auditor is
// configured, records it with the given actor. Rejected commands are not
// recorded.
func (t *Tracker) ExecuteAs(ctx context.Context, locationID string, cmd Command, actor Actor) (occupancy.Result, error) {
	if cmd.SourceID == "" {
		cmd.SourceID = defaultCommandSource
	}
	r, err := t.execute(ctx, locationID, cmd)
	if err != nil {
		return r, err
	}
	t.audit(ctx, locationID, cmd, actor, len(r.Transitions))
	return r, nil
}

func (t *Tracker) execute(ctx context.Context, locationID string, cmd Command) (occupancy.Result, error) {
	if cmd.Command == CommandVacateArea {
		return t.VacateArea(ctx, locationID, cmd.SourceID, cmd.IncludeLocked)
	}

	typ, err := occupancy.ParseEventType(cmd.Command)
	if err != nil {
		return occupancy.Result{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	event := occupancy.Event{LocationID: locationID, Type: typ, SourceID: cmd.SourceID}
	if cmd.Timeout != nil {
		event.Timeout = time.Duration(*cmd.Timeout * float64(time.Second))
		event.TimeoutSet = true
	}
	return t.Handle(ctx, event)
}

// audit records an applied command. Failures are logged.
func (t *Tracker) audit(ctx context.Context, locationID string, cmd Command, actor Actor, transitions int) {
	if t.auditor == nil {
		return
	}
	entry := &audit.Entry{
		LocationID:  locationID,
		Command:     cmd.Command,
		SourceID:    cmd.SourceID,
		Origin:      actor.Origin,
		Subject:     actor.Subject,
		Transitions: transitions,
		CreatedAt:   t.now().UTC(),
	}
	if cmd.Timeout != nil {
		entry.Details = map[string]any{"timeout": *cmd.Timeout}
	}
	if cmd.IncludeLocked {
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["include_locked"] = true
	}
	if err := t.auditor.Create(ctx, entry); err != nil {
		t.logger.Warn("occupancy audit write failed", "location_id", locationID, "command", cmd.Command, "error", err)
	}
}

// HandleSignal classifies a device state report and applies the
// resulting events. Signals from unbound devices, or that carry no
// change, produce an empty result.
func (t *Tracker) HandleSignal(ctx context.Context, sig classify.Signal) (occupancy.Result, error) {
	if t.classifier == nil {
		return occupancy.Result{}, ErrNoClassifier
	}

	events, ok := t.classifier.Classify(sig)
	if !ok {
		t.logger.Debug("signal ignored", "device_id", sig.DeviceID)
	}
	if len(events) == 0 {
		return occupancy.Result{}, nil
	}

	binding, _ := t.classifier.Binding(sig.DeviceID)
	return t.apply(ctx, func(now time.Time) occupancy.Result {
		var merged occupancy.Result
		for _, ev := range events {
			if t.rec != nil {
				t.rec.WriteSensorSignal(influxdb.SensorPoint{
					DeviceID:   sig.DeviceID,
					LocationID: ev.LocationID,
					Kind:       string(binding.Kind),
					Active:     ev.Type != occupancy.EventRelease,
					Timestamp:  now,
				})
			}
			r := t.engine.HandleEvent(ev, now)
			merged.Transitions = append(merged.Transitions, r.Transitions...)
			merged.NextExpiration = r.NextExpiration
		}
		return merged
	}), nil
}

// Subscribe registers the tracker's bus handlers: bridge device state
// through the classifier, and per-location commands.
//
// ctx is passed to every call the handlers make.
func (t *Tracker) Subscribe(ctx context.Context, sub Subscriber) error {
	topics := mqtt.Topics{}
	if t.classifier != nil {
		if err := sub.Subscribe(topics.AllBridgeStates(), t.qos, t.stateHandler(ctx)); err != nil {
			return fmt.Errorf("subscribing to bridge state: %w", err)
		}
	}
	if err := sub.Subscribe(topics.AllOccupancyCommands(), t.qos, t.commandHandler(ctx)); err != nil {
		return fmt.Errorf("subscribing to occupancy commands: %w", err)
	}
	t.logger.Info("occupancy tracker subscribed", "classifier", t.classifier != nil)
	return nil
}

func (t *Tracker) stateHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		msg, err := mqtt.DecodeStateMessage(payload)
		if err != nil {
			return fmt.Errorf("state on %s: %w", topic, err)
		}
		_, err = t.HandleSignal(ctx, classify.Signal{
			DeviceID:  msg.DeviceID,
			State:     msg.State,
			Timestamp: msg.Timestamp,
		})
		return err
	}
}

func (t *Tracker) commandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		id, ok := mqtt.LocationFromCommandTopic(topic)
		if !ok {
			return fmt.Errorf("%w: unexpected topic %s", ErrInvalidCommand, topic)
		}
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		r, err := t.ExecuteAs(ctx, id, cmd, Actor{Origin: audit.OriginMQTT})
		if err != nil {
			return err
		}
		t.logger.Info("occupancy command applied",
			"location_id", id,
			"command", cmd.Command,
			"source_id", cmd.SourceID,
			"transitions", len(r.Transitions),
		)
		return nil
	}
}
