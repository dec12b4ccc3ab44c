package crypto

import (
	"errors"

	"github.com/bytemare/ksf"
)

// HKDF limits (RFC 5869 Section 2.3).
const (
	// HKDFMaxLength is the largest output HKDF-Expand can produce: 255 blocks
	// of the hash output size.
	HKDFMaxLength = 255 * SHA256LenBytes
)

// Passphrase stretching parameters for provisioning a root secret.
const (
	// StretchSaltMinSize is the minimum salt length accepted by StretchPassphrase.
	StretchSaltMinSize = 16
)

// Errors for key derivation.
var (
	ErrHKDFLengthTooLarge  = errors.New("hkdf: requested length exceeds 255 * hash length")
	ErrHKDFInvalidLength   = errors.New("hkdf: requested length must not be negative")
	ErrStretchSaltTooShort = errors.New("kdf: salt too short")
	ErrStretchEmptyInput   = errors.New("kdf: empty passphrase")
)

// HKDFExtractSHA256 performs the HKDF-Extract step: one HMAC with salt as the
// key and the input keying material as the message. An empty salt is replaced
// by 32 zero bytes.
//
// Returns a 32-byte pseudorandom key.
func HKDFExtractSHA256(inputKey, salt []byte) [SHA256LenBytes]byte {
	if len(salt) == 0 {
		var zero [SHA256LenBytes]byte
		return HMACSHA256(zero[:], inputKey)
	}
	return HMACSHA256(salt, inputKey)
}

// HKDFExpandSHA256 performs the HKDF-Expand step.
//
//	T(0) = empty
//	T(i) = HMAC(prk, T(i-1) || info || i)
//
// The blocks are concatenated and truncated to length bytes.
func HKDFExpandSHA256(prk, info []byte, length int) ([]byte, error) {
	if length < 0 {
		return nil, ErrHKDFInvalidLength
	}
	if length > HKDFMaxLength {
		return nil, ErrHKDFLengthTooLarge
	}

	out := make([]byte, length)
	if err := HKDFExpandInto(out, prk, info); err != nil {
		return nil, err
	}
	return out, nil
}

// HKDFExpandInto fills dst with HKDF-Expand output, allocating nothing beyond
// the HMAC contexts.
func HKDFExpandInto(dst, prk, info []byte) error {
	if len(dst) > HKDFMaxLength {
		return ErrHKDFLengthTooLarge
	}
	if len(dst) == 0 {
		return nil
	}

	key := NewMACKey(prk)
	defer key.Destroy()

	var (
		t       [SHA256LenBytes]byte
		counter [1]byte
		n       int
	)
	h := key.New()
	for i := 1; n < len(dst); i++ {
		h.Reset()
		if i > 1 {
			h.Write(t[:])
		}
		h.Write(info)
		counter[0] = byte(i)
		h.Write(counter[:])

		var err error
		t, err = h.Complete()
		if err != nil {
			return err
		}
		n += copy(dst[n:], t[:])
	}
	clear(t[:])
	return nil
}

// HKDFSHA256 derives key material using HKDF-SHA256 (RFC 5869):
// HKDF-Expand(HKDF-Extract(salt, inputKey), info, length).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive, at most HKDFMaxLength
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	prk := HKDFExtractSHA256(inputKey, salt)
	defer clear(prk[:])
	return HKDFExpandSHA256(prk[:], info, length)
}

// StretchPassphrase hardens a human-chosen passphrase into length bytes of
// key material with Argon2id at its default parameters. It is used to
// provision the same root secret on both halves and the receiver when no
// pairing exchange is available.
func StretchPassphrase(passphrase, salt []byte, length int) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrStretchEmptyInput
	}
	if len(salt) < StretchSaltMinSize {
		return nil, ErrStretchSaltTooShort
	}
	if length <= 0 || length > HKDFMaxLength {
		return nil, ErrHKDFLengthTooLarge
	}
	return ksf.Argon2id.Get().Harden(passphrase, salt, length), nil
}
