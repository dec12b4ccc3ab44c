package session

import "errors"

// Session package errors.
var (
	// ErrInvalidRootSecret is returned when the root secret is not RootSecretSize bytes.
	ErrInvalidRootSecret = errors.New("session: invalid root secret length")

	// ErrInvalidHalf is returned when the half identity is not left or right.
	ErrInvalidHalf = errors.New("session: invalid half")

	// ErrSessionDestroyed is returned when a destroyed context is used.
	ErrSessionDestroyed = errors.New("session: context destroyed")

	// ErrSessionNotFound is returned when a table lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrDuplicateSession is returned when adding a context for a half that
	// already has one.
	ErrDuplicateSession = errors.New("session: duplicate session for half")
)
