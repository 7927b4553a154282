package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Gray Logic MQTT hierarchy.
//
// Bridges publish on the flat scheme graylogic/{category}/{protocol}/{address};
// the occupancy service lives under graylogic/core/occupancy.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixCore is the base for core service topics.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixOccupancy is the base for per-location occupancy topics.
	TopicPrefixOccupancy = "graylogic/core/occupancy"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// EventOccupancyChanged is the core event type published for every transition.
const EventOccupancyChanged = "occupancy_changed"

// Topics provides builders for the MQTT topics this service uses.
//
//	topics := mqtt.Topics{}
//	topics.OccupancyState("kitchen")
//	// Returns: "graylogic/core/occupancy/kitchen/state"
type Topics struct{}

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: graylogic/state/knx/pir-kitchen
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, address)
}

// OccupancyState returns the retained state topic for a location.
//
// Example: graylogic/core/occupancy/kitchen/state
func (Topics) OccupancyState(locationID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixOccupancy, locationID)
}

// OccupancyCommand returns the command topic for a location.
//
// Example: graylogic/core/occupancy/kitchen/command
func (Topics) OccupancyCommand(locationID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixOccupancy, locationID)
}

// CoreEvent returns the topic for core events.
//
// Example: graylogic/core/event/occupancy_changed
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// ServiceStatus returns the retained online/offline topic for a client.
//
// Example: graylogic/system/status/graylogic-occupancy
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixSystem, clientID)
}

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// AllOccupancyCommands returns a pattern matching every location's command topic.
//
// Pattern: graylogic/core/occupancy/+/command
func (Topics) AllOccupancyCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefixOccupancy)
}

// AllOccupancyStates returns a pattern matching every location's state topic.
//
// Pattern: graylogic/core/occupancy/+/state
func (Topics) AllOccupancyStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixOccupancy)
}

// LocationFromCommandTopic extracts the location ID from an occupancy
// command topic. It reports false for any other topic.
func LocationFromCommandTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixOccupancy+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/command")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// ParseBridgeStateTopic splits graylogic/state/{protocol}/{address}.
func ParseBridgeStateTopic(topic string) (protocol, address string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixBridge+"/state/")
	if !found {
		return "", "", false
	}
	protocol, address, found = strings.Cut(rest, "/")
	if !found || protocol == "" || address == "" || strings.Contains(address, "/") {
		return "", "", false
	}
	return protocol, address, true
}
