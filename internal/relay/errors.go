package relay

import "errors"

// Sentinel errors for resource-conflict conditions, mapped to HTTP status
// codes in the API handlers.
var (
	ErrStreamNotActive  = errors.New("stream not active")
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no active recording")
)
