package transport

import "errors"

var (
	// ErrSessionNotFound occurs when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingSessionID occurs when a session ID is missing in the request.
	ErrMissingSessionID = errors.New("missing session id")

	// ErrSessionClosed occurs when a message is posted to a session whose stream has ended.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidMessage occurs when a posted body is not valid JSON.
	ErrInvalidMessage = errors.New("invalid JSON message")
)
