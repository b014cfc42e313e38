package raglens

import "errors"

var (
	// ErrInvalidRun is returned when a payload cannot be interpreted as
	// a run document (a JSON object) at all. In-document malformities
	// never produce this; they degrade to zeroed derived fields.
	ErrInvalidRun = errors.New("raglens: run is not a JSON object")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("raglens: invalid configuration")

	// ErrChatUnavailable is returned by ChatStream when no chat model is
	// configured.
	ErrChatUnavailable = errors.New("raglens: chat model not configured")

	// ErrSourceLoad is returned when the run referenced by a chat
	// request's source cannot be loaded.
	ErrSourceLoad = errors.New("raglens: failed to load run source")
)
