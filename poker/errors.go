package poker

import "errors"

var (
	ErrCapacityExceeded = errors.New("room-limit-reached")
	ErrRoomNotFound     = errors.New("room-not-found")
	ErrUsernameTaken    = errors.New("username-taken")
	ErrInvalidUsername  = errors.New("invalid-username")
)

var (
	ErrSessionNotFound = errors.New("session-not-found")
	ErrObserverVote    = errors.New("observer-cannot-vote")
	ErrAlreadyJoined   = errors.New("already-joined")
	ErrNotJoined       = errors.New("not-joined")
)

var (
	ErrSendBufferFull   = errors.New("send-buffer-full")
	ErrConnectionClosed = errors.New("connection-closed")
)

// userMessages holds the text shown to a client for errors that reach it.
var userMessages = map[error]string{
	ErrCapacityExceeded: "The server has reached its room limit. Try again later.",
	ErrRoomNotFound:     "Room not found.",
	ErrUsernameTaken:    "Name is in use. Pick another.",
	ErrInvalidUsername:  "Pick a name between 1 and 32 characters.",
	ErrAlreadyJoined:    "Already joined.",
}
