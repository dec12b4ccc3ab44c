package link

import "errors"

// Package-level errors.
var (
	// ErrNoSender is returned when a transmitter has no Sender configured.
	ErrNoSender = errors.New("link: sender is required")

	// ErrNoPeerAddr is returned when a transmitter has no peer address.
	ErrNoPeerAddr = errors.New("link: peer address is required")

	// ErrInvalidReportSize is returned when a report does not have the
	// configured size.
	ErrInvalidReportSize = errors.New("link: invalid report size")

	// ErrInvalidReplayMode is returned for an unknown replay mode.
	ErrInvalidReplayMode = errors.New("link: invalid replay mode")

	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("link: closed")
)
