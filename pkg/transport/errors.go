package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidAddress is returned when an invalid peer address is provided.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrNoHandler is returned by Start when no message handler is configured.
	ErrNoHandler = errors.New("transport: no message handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrInvalidEndpoint is returned when a pipe endpoint other than 0 or 1 is requested.
	ErrInvalidEndpoint = errors.New("transport: invalid pipe endpoint")
)

// Frame errors returned by Datagram.Send. Received datagrams failing the same
// checks are dropped and counted in DatagramStats.
var (
	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("transport: frame too large")

	// ErrEmptyFrame is returned for a frame without a half byte.
	ErrEmptyFrame = errors.New("transport: empty frame")

	// ErrUntaggedFrame is returned when the half byte names no keyboard half.
	ErrUntaggedFrame = errors.New("transport: frame not tagged with a known half")

	// ErrHalfMismatch is returned when a frame's half byte differs from the
	// half the transport is bound to.
	ErrHalfMismatch = errors.New("transport: frame tagged for another half")
)
