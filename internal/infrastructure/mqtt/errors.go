package mqtt

import "errors"

// Sentinel errors, checked with errors.Is. Broker-side failures are
// wrapped with the paho token error.
var (
	// Connection state.
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: client not connected")

	// Token failures for the matching operation.
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// Argument checks done before anything reaches the broker.
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidPayload marks an inbound bridge state message
	// that could not be decoded.
	ErrInvalidPayload = errors.New("mqtt: invalid payload")
)
