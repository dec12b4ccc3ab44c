package session

import (
	"github.com/backkem/keylink/pkg/crypto"
)

// Key size constants.
const (
	// RootSecretSize is the size of the shared root secret established by pairing.
	RootSecretSize = 32

	// CipherKeySize is the size of the AES-128 counter-mode key.
	CipherKeySize = crypto.BlockKeySize

	// AuthKeySize is the size of the HMAC-SHA256 authentication key.
	AuthKeySize = crypto.SHA256LenBytes

	// NonceSize is the size of the initial counter block.
	NonceSize = crypto.AESCTRIVSize

	// KeyMaterialSize is the total HKDF output split into the three keys.
	KeyMaterialSize = CipherKeySize + AuthKeySize + NonceSize
)

// InfoPrefix is prepended to the half name to form the HKDF info string.
const InfoPrefix = "keylink session v1 "

// Keys is the key material of one half.
type Keys struct {
	CipherKey [CipherKeySize]byte
	AuthKey   [AuthKeySize]byte
	Nonce     [NonceSize]byte
}

// Info returns the HKDF info string bound to a half.
func Info(half Half) []byte {
	return []byte(InfoPrefix + half.String())
}

// DeriveKeys expands the root secret into the disjoint key set of one half.
// It is a pure function: the same inputs always produce the same keys.
func DeriveKeys(rootSecret []byte, half Half) (Keys, error) {
	var k Keys
	if len(rootSecret) != RootSecretSize {
		return k, ErrInvalidRootSecret
	}
	if !half.IsValid() {
		return k, ErrInvalidHalf
	}

	prk := crypto.HKDFExtractSHA256(rootSecret, nil)
	defer clear(prk[:])

	var okm [KeyMaterialSize]byte
	defer clear(okm[:])
	if err := crypto.HKDFExpandInto(okm[:], prk[:], Info(half)); err != nil {
		return k, err
	}

	copy(k.CipherKey[:], okm[:CipherKeySize])
	copy(k.AuthKey[:], okm[CipherKeySize:CipherKeySize+AuthKeySize])
	copy(k.Nonce[:], okm[CipherKeySize+AuthKeySize:])
	return k, nil
}

// Zeroize clears all key material.
func (k *Keys) Zeroize() {
	clear(k.CipherKey[:])
	clear(k.AuthKey[:])
	clear(k.Nonce[:])
}
