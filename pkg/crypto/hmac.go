package crypto

import (
	"crypto/subtle"
	"errors"
)

// HMAC pad bytes (RFC 2104).
const (
	hmacInnerPad = 0x36
	hmacOuterPad = 0x5c
)

// Errors for HMAC operations.
var (
	ErrHMACCompleted = errors.New("hmac: context already completed, re-initialize to hash again")
	ErrHMACNoKey     = errors.New("hmac: context not initialized with a key")
)

// MACKey is the inner/outer key pair derived from one authentication secret.
//
// Each half is the saved SHA-256 state after absorbing (key XOR pad), so a
// new HMAC context starts from it without touching the secret again.
type MACKey struct {
	inner []byte
	outer []byte
}

// NewMACKey derives the inner/outer pad keys for key. A key longer than the
// SHA-256 block size is first hashed down to 32 bytes; a shorter key is
// zero-padded.
func NewMACKey(key []byte) *MACKey {
	var block [SHA256BlockSize]byte
	if len(key) > SHA256BlockSize {
		sum := SHA256(key)
		copy(block[:], sum[:])
	} else {
		copy(block[:], key)
	}

	var pad [SHA256BlockSize]byte
	h := newHashState()

	for i := range pad {
		pad[i] = block[i] ^ hmacInnerPad
	}
	h.Write(pad[:])
	// Marshaling a SHA-256 state never fails.
	inner, _ := h.MarshalBinary()

	h.Reset()
	for i := range pad {
		pad[i] = block[i] ^ hmacOuterPad
	}
	h.Write(pad[:])
	outer, _ := h.MarshalBinary()

	clear(block[:])
	clear(pad[:])

	return &MACKey{inner: inner, outer: outer}
}

// New returns a freshly initialized HMAC context using this key pair.
func (k *MACKey) New() *HMAC {
	h := &HMAC{}
	h.init(k)
	return h
}

// Destroy wipes the derived pad states. The key must not be used afterwards.
func (k *MACKey) Destroy() {
	clear(k.inner)
	clear(k.outer)
	k.inner = nil
	k.outer = nil
}

// HMAC is a streaming HMAC-SHA256 context.
//
// Write may be called any number of times; the result equals a single Write
// of the concatenated chunks. Complete produces the 32-byte tag and
// invalidates the context: further Write or Complete calls fail with
// ErrHMACCompleted until Reset.
type HMAC struct {
	key       *MACKey
	inner     hashState
	completed bool
}

// NewHMACSHA256 initializes an HMAC-SHA256 context for key.
//
// Usage:
//
//	h := crypto.NewHMACSHA256(key)
//	h.Write(data1)
//	h.Write(data2)
//	tag, err := h.Complete()
func NewHMACSHA256(key []byte) *HMAC {
	return NewMACKey(key).New()
}

func (h *HMAC) init(k *MACKey) {
	h.key = k
	if h.inner == nil {
		h.inner = newHashState()
	}
	h.completed = false
	if k == nil || k.inner == nil {
		return
	}
	// A pad state that does not restore leaves the context keyless.
	if err := h.inner.UnmarshalBinary(k.inner); err != nil {
		h.key = nil
	}
}

// Reset re-initializes the context with its key, discarding hashed data.
func (h *HMAC) Reset() {
	h.init(h.key)
}

// Write feeds more message bytes into the inner hash.
func (h *HMAC) Write(p []byte) (int, error) {
	if h.completed {
		return 0, ErrHMACCompleted
	}
	if h.key == nil || h.key.inner == nil {
		return 0, ErrHMACNoKey
	}
	return h.inner.Write(p)
}

// Complete finalizes the inner hash, computes the outer hash over
// (outer pad key || inner digest) and returns the tag.
func (h *HMAC) Complete() ([SHA256LenBytes]byte, error) {
	var tag [SHA256LenBytes]byte
	if h.completed {
		return tag, ErrHMACCompleted
	}
	if h.key == nil || h.key.outer == nil {
		return tag, ErrHMACNoKey
	}
	h.completed = true

	var innerSum [SHA256LenBytes]byte
	h.inner.Sum(innerSum[:0])

	outer := newHashState()
	if err := outer.UnmarshalBinary(h.key.outer); err != nil {
		return tag, err
	}
	outer.Write(innerSum[:])
	outer.Sum(tag[:0])

	h.inner.Reset()
	return tag, nil
}

// Size returns the tag length in bytes.
func (h *HMAC) Size() int {
	return SHA256LenBytes
}

// HMACSHA256 computes the HMAC-SHA256 of a message using the given key.
//
// Returns a 32-byte (256-bit) MAC.
func HMACSHA256(key, message []byte) [SHA256LenBytes]byte {
	h := NewHMACSHA256(key)
	h.Write(message)
	// A fresh keyed context is neither completed nor keyless.
	tag, _ := h.Complete()
	return tag
}

// HMACEqual compares two MACs in constant time with respect to their
// contents. The comparison always covers the full length; MACs of different
// lengths never match.
func HMACEqual(mac1, mac2 []byte) bool {
	return subtle.ConstantTimeCompare(mac1, mac2) == 1
}
