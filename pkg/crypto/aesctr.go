// AES-128-CTR engine driven through the block cipher adapter.
// This implements CTR mode as defined in NIST 800-38A Section 6.5 with a
// 128-bit counter block incremented as one big-endian integer.
//
// The counter block is a 12-byte per-session nonce prefix followed by a
// 32-bit big-endian counter field. The field is set explicitly per message;
// Encrypt and Decrypt do not advance it between calls.

package crypto

import (
	"encoding/binary"
	"errors"
)

// AES-CTR constants.
const (
	// AESCTRKeySize is the AES-128 key size in bytes.
	AESCTRKeySize = BlockKeySize

	// AESCTRIVSize is the full counter block size in bytes.
	AESCTRIVSize = BlockSize

	// AESCTRCounterOffset is where the 32-bit counter field starts within the
	// counter block.
	AESCTRCounterOffset = BlockSize - 4
)

// Errors for AES-CTR operations.
var (
	ErrAESCTRInvalidKeySize = errors.New("aesctr: invalid key size, must be 16 bytes")
	ErrAESCTRInvalidIVSize  = errors.New("aesctr: invalid IV size, must be 16 bytes")
	ErrAESCTRShortBuffer    = errors.New("aesctr: output buffer smaller than input")
)

// AESCTR is an AES-128-CTR engine.
//
// It is not safe for concurrent use. The engine owns its key and scratch
// state; callers sharing one engine between an interrupt path and a main loop
// must serialize access.
type AESCTR struct {
	ecb   *ECB
	iv    [AESCTRIVSize]byte
	state ECBState
}

// NewAESCTR creates an AES-128-CTR engine over a software primitive.
// The key must be exactly 16 bytes and the IV exactly 16 bytes.
func NewAESCTR(key, iv []byte) (*AESCTR, error) {
	return NewAESCTRWithECB(key, iv, NewECB(ECBConfig{}))
}

// NewAESCTRWithECB creates an AES-128-CTR engine that encrypts counter blocks
// through the given adapter.
func NewAESCTRWithECB(key, iv []byte, ecb *ECB) (*AESCTR, error) {
	if len(key) != AESCTRKeySize {
		return nil, ErrAESCTRInvalidKeySize
	}
	if len(iv) != AESCTRIVSize {
		return nil, ErrAESCTRInvalidIVSize
	}
	if ecb == nil {
		ecb = NewECB(ECBConfig{})
	}

	c := &AESCTR{ecb: ecb}
	copy(c.state.Key[:], key)
	copy(c.iv[:], iv)

	if err := c.ecb.Init(&c.state); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCounter sets the 32-bit counter field of the IV and returns the previous
// value of the field.
func (c *AESCTR) SetCounter(counter uint32) uint32 {
	prev := binary.BigEndian.Uint32(c.iv[AESCTRCounterOffset:])
	binary.BigEndian.PutUint32(c.iv[AESCTRCounterOffset:], counter)
	return prev
}

// Counter returns the 32-bit counter field of the IV.
func (c *AESCTR) Counter() uint32 {
	return binary.BigEndian.Uint32(c.iv[AESCTRCounterOffset:])
}

// IV returns the counter block the next operation starts from.
func (c *AESCTR) IV() [AESCTRIVSize]byte {
	return c.iv
}

// Keystream returns the most recently computed keystream block, i.e. the
// encryption of CounterBlock.
func (c *AESCTR) Keystream() [BlockSize]byte {
	return c.state.Ciphertext
}

// CounterBlock returns the last counter block fed to the block cipher.
func (c *AESCTR) CounterBlock() [BlockSize]byte {
	return c.state.Cleartext
}

// Encrypt XORs src with the keystream starting at the IV and writes the
// result to dst. dst and src may alias exactly. Zero-length input is a no-op.
func (c *AESCTR) Encrypt(dst, src []byte) error {
	return c.xorKeyStream(dst, src)
}

// Decrypt is identical to Encrypt.
func (c *AESCTR) Decrypt(dst, src []byte) error {
	return c.xorKeyStream(dst, src)
}

// xorKeyStream generates ceil(len(src)/16) keystream blocks. The final block
// contributes only the bytes it needs. Adapter failures are returned as is.
func (c *AESCTR) xorKeyStream(dst, src []byte) error {
	if len(dst) < len(src) {
		return ErrAESCTRShortBuffer
	}
	if len(src) == 0 {
		return nil
	}

	if err := c.ecb.Init(&c.state); err != nil {
		return err
	}

	c.state.Cleartext = c.iv
	for off := 0; off < len(src); off += BlockSize {
		if off > 0 {
			incrementBlock(&c.state.Cleartext)
		}
		if err := c.ecb.Encrypt(); err != nil {
			return err
		}

		end := off + BlockSize
		if end > len(src) {
			end = len(src)
		}
		for i := off; i < end; i++ {
			dst[i] = src[i] ^ c.state.Ciphertext[i-off]
		}
	}
	return nil
}

// incrementBlock adds one to the block as a 128-bit big-endian integer.
func incrementBlock(b *[BlockSize]byte) {
	for i := BlockSize - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}

// Zeroize clears the key, the counter block and the last keystream block.
// The engine must not be used afterwards.
func (c *AESCTR) Zeroize() {
	clear(c.state.Key[:])
	clear(c.state.Cleartext[:])
	clear(c.state.Ciphertext[:])
	clear(c.iv[:])
}

// AESCTREncrypt is a convenience function for AES-128-CTR encryption with a
// software primitive.
func AESCTREncrypt(key, iv, plaintext []byte) ([]byte, error) {
	ctr, err := NewAESCTR(key, iv)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	if err := ctr.Encrypt(ciphertext, plaintext); err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// AESCTRDecrypt is a convenience function for AES-128-CTR decryption with a
// software primitive.
func AESCTRDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	return AESCTREncrypt(key, iv, ciphertext)
}
