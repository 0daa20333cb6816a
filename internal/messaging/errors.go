package messaging

import "errors"

// Error taxonomy surfaced by the service. Callers translate these into
// transport-appropriate failures (HTTP status or a scoped websocket error
// event); anything not matching is an unexpected store failure.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotParticipant  = errors.New("user is not a participant in this conversation")
	ErrPolicyViolation = errors.New("fans can only initiate conversations with other fans")
	ErrInvalidInput    = errors.New("invalid input")
)
