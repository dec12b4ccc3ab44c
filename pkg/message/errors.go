package message

import "errors"

// Message layer errors.
var (
	// Decoding errors
	ErrInvalidLength  = errors.New("message: invalid length")
	ErrFrameTooShort  = errors.New("message: frame too short")
	ErrUnknownHalf    = errors.New("message: unknown half")
	ErrInvalidTagSize = errors.New("message: invalid tag size")

	// Security errors
	ErrAuthenticationFailed = errors.New("message: authentication failed")
	ErrNoSession            = errors.New("message: no session context")

	// Counter errors
	ErrReplayDetected   = errors.New("message: replay detected")
	ErrCounterExhausted = errors.New("message: message counter exhausted")
)

// Wire format constants.
const (
	// CounterSize is the width of the transmitted counter in bytes. It is
	// encoded little-endian on the wire and in the tag input, and big-endian
	// in the last four bytes of the CTR counter block.
	CounterSize = 4

	// DefaultTagSize is the full HMAC-SHA256 output size.
	DefaultTagSize = 32

	// MinTagSize is the shortest truncated tag a codec accepts.
	MinTagSize = 16

	// MaxTagSize is the longest tag, the untruncated HMAC-SHA256 output.
	MaxTagSize = 32

	// FrameHeaderSize is the size of the half byte that prefixes a frame.
	FrameHeaderSize = 1
)

// Counter constants.
const (
	// CounterWindowSize is the number of counters below the maximum tracked
	// by ReplayWindow.
	CounterWindowSize = 32

	// CounterInitMax is the maximum initial counter value (2^28).
	// Fresh counters start at a random value in [1, CounterInitMax].
	CounterInitMax = 1 << 28
)
