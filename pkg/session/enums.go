// Package session derives and holds the per-half cryptographic state of a
// keyboard link.
//
// Each physical half of the keyboard (left and right) owns one Context: a
// counter-mode cipher engine and an HMAC key pair, both derived from the
// root secret shared by pairing. The receiver derives the same two contexts
// independently from the same root secret, so no key material ever crosses
// the radio.
//
// Derivation is a single HKDF-SHA256 expansion of 64 bytes whose info string
// binds the half identity:
//
//	okm = HKDF(root, salt = empty, info = "keylink session v1 " || half, 64)
//	cipher key = okm[0:16]
//	auth key   = okm[16:48]
//	nonce      = okm[48:64]
package session

// Half identifies which physical half of the keyboard a session belongs to.
// The numeric value is the half byte carried in radio frames.
type Half uint8

const (
	// HalfUnknown indicates an uninitialized or invalid half.
	HalfUnknown Half = iota

	// HalfLeft is the left half of the keyboard.
	HalfLeft

	// HalfRight is the right half of the keyboard.
	HalfRight
)

// Halves lists every valid half in frame order.
var Halves = [...]Half{HalfLeft, HalfRight}

// String returns a human-readable name for the half.
func (h Half) String() string {
	switch h {
	case HalfLeft:
		return "left"
	case HalfRight:
		return "right"
	default:
		return "unknown"
	}
}

// IsValid returns true if the half is a defined value.
func (h Half) IsValid() bool {
	return h == HalfLeft || h == HalfRight
}
