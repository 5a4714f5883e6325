package domain

import "errors"

var (
	// ErrNotFound reports a lookup for a session id that does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrSessionCreate reports that the store could not create a session.
	// The turn never starts when this happens.
	ErrSessionCreate = errors.New("session create failed")

	// ErrDialogueUnavailable reports that the engine call did not complete
	// with a success status.
	ErrDialogueUnavailable = errors.New("dialogue engine unavailable")

	// ErrPersist reports that a specific append failed. Earlier appends in
	// the same turn remain committed; nothing is rolled back.
	ErrPersist = errors.New("persist failed")
)
