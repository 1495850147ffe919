package network

import "errors"

var (
	// ErrUnknownEventKind is returned for events outside purchase/befriend/unfriend.
	ErrUnknownEventKind = errors.New("network: unknown event kind")
	// ErrUnknownUser is returned when an unfriend names an unregistered user.
	ErrUnknownUser = errors.New("network: unknown user")
	// ErrNotFriends is returned when an unfriend names an edge that does not exist.
	ErrNotFriends = errors.New("network: users are not friends")
	// ErrInvalidParameters is returned for a negative degree or history size.
	ErrInvalidParameters = errors.New("network: invalid parameters")
)
