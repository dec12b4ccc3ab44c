// Package message implements the authenticated payload codec of the keyboard
// link and the radio frame that carries it.
//
// The package provides:
//   - Seal and Open of report payloads (AES-128-CTR, then HMAC-SHA256 over
//     ciphertext and counter)
//   - Sealed payload and frame encoding/decoding
//   - Outbound message counters
//   - The replay policy applied to inbound counters
//
// Wire layout of a sealed payload:
//
//	ciphertext (len(plaintext)) || counter (4, little-endian) || tag (TagSize)
//
// A frame prefixes one half byte:
//
//	half (1) || sealed payload
package message

// ReplayMode selects how ReceptionState treats counters at or below the
// highest accepted value.
type ReplayMode uint8

const (
	// ReplayStrict accepts only counters strictly greater than every counter
	// accepted so far.
	ReplayStrict ReplayMode = 0

	// ReplayWindow also accepts a counter up to CounterWindowSize below the
	// highest accepted value, once, for transports that reorder.
	ReplayWindow ReplayMode = 1
)

// String returns a human-readable name for the replay mode.
func (m ReplayMode) String() string {
	switch m {
	case ReplayStrict:
		return "Strict"
	case ReplayWindow:
		return "Window"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the replay mode is a defined value.
func (m ReplayMode) IsValid() bool {
	return m <= ReplayWindow
}
