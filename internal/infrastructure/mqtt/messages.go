package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Service status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	ReasonGracefulShutdown     = "graceful_shutdown"
	ReasonUnexpectedDisconnect = "unexpected_disconnect"
)

// StatusMessage is the retained payload on the service status topic.
type StatusMessage struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newStatusMessage(clientID, status, reason string) StatusMessage {
	return StatusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

// StateMessage is the device state payload bridges publish on
// graylogic/state/{protocol}/{address}.
//
// State is device-specific, e.g. {"motion": true} for a PIR or
// {"playing": true} for a media player.
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
	Protocol  string         `json:"protocol"`
	Address   string         `json:"address"`
}

// DecodeStateMessage parses a bridge state payload. A message without a
// device_id is rejected since it cannot be routed to a binding.
func DecodeStateMessage(payload []byte) (StateMessage, error) {
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return StateMessage{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.DeviceID == "" {
		return StateMessage{}, fmt.Errorf("%w: missing device_id", ErrInvalidPayload)
	}
	return msg, nil
}
