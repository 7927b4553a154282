package tracker

import "errors"

var (
	// ErrNoEngine is returned by New when Options.Engine is nil.
	ErrNoEngine = errors.New("tracker: engine is required")

	// ErrUnknownLocation is returned for commands addressed to a location
	// the engine does not know.
	ErrUnknownLocation = errors.New("tracker: unknown location")

	// ErrInvalidCommand is returned for malformed or unknown commands.
	ErrInvalidCommand = errors.New("tracker: invalid command")

	// ErrNoClassifier is returned by HandleSignal when no classifier is configured.
	ErrNoClassifier = errors.New("tracker: no signal classifier configured")

	// ErrAlreadyStarted is returned when Start is called on a running tracker.
	ErrAlreadyStarted = errors.New("tracker: already started")
)
