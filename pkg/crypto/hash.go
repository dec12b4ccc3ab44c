// Package crypto provides the cryptographic core of the keyboard link: a
// block cipher adapter, a counter-mode engine, an HMAC-SHA256 engine and an
// HKDF-SHA256 engine built on it.
//
// The construction is fixed: AES-128 in CTR mode for confidentiality and
// HMAC-SHA256 over the ciphertext and counter for authenticity. There is no
// algorithm negotiation.
package crypto

import (
	"crypto/sha256"
	"encoding"
	"hash"
)

// SHA-256 constants.
const (
	// SHA256LenBits is the SHA-256 output length in bits.
	SHA256LenBits = 256

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32

	// SHA256BlockSize is the SHA-256 compression block size in bytes.
	// HMAC keys are padded or hashed to this length.
	SHA256BlockSize = 64
)

// SHA256 computes the SHA-256 hash of a message.
//
// Returns a 32-byte (256-bit) hash digest.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// hashState is a SHA-256 instance whose running state can be saved and
// restored. The HMAC engine snapshots the state after absorbing each pad block
// so a fresh context never has to rehash the key.
type hashState interface {
	hash.Hash
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// newHashState returns a fresh SHA-256 instance with state snapshot support.
func newHashState() hashState {
	return sha256.New().(hashState)
}
