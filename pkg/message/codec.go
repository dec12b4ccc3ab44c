package message

import (
	"encoding/binary"

	"github.com/backkem/keylink/pkg/crypto"
	"github.com/backkem/keylink/pkg/session"
)

// CodecConfig configures a Codec.
type CodecConfig struct {
	// TagSize is the transmitted tag length. The full 32-byte tag is always
	// computed and then truncated.
	// Default: DefaultTagSize
	TagSize int
}

// Codec seals and opens report payloads for one session context.
//
// Like the context it wraps, a Codec is not safe for concurrent use.
type Codec struct {
	session *session.Context
	tagSize int
}

// NewCodec creates a codec over a session context.
func NewCodec(ctx *session.Context, config CodecConfig) (*Codec, error) {
	if ctx == nil {
		return nil, ErrNoSession
	}
	tagSize := config.TagSize
	if tagSize == 0 {
		tagSize = DefaultTagSize
	}
	if tagSize < MinTagSize || tagSize > MaxTagSize {
		return nil, ErrInvalidTagSize
	}

	return &Codec{
		session: ctx,
		tagSize: tagSize,
	}, nil
}

// Session returns the session context the codec operates on.
func (c *Codec) Session() *session.Context {
	return c.session
}

// TagSize returns the transmitted tag length.
func (c *Codec) TagSize() int {
	return c.tagSize
}

// Overhead returns the number of bytes a sealed payload adds to its plaintext.
func (c *Codec) Overhead() int {
	return CounterSize + c.tagSize
}

// Seal encrypts plaintext with the CTR counter field set to counter and
// authenticates the ciphertext together with the counter.
//
// The counter is used as given; callers supply monotonically increasing
// values and must never reuse one under the same session. On failure the CTR
// counter field keeps its previous value.
func (c *Codec) Seal(plaintext []byte, counter uint32) (*SealedPayload, error) {
	ctr, err := c.session.CTR()
	if err != nil {
		return nil, err
	}

	p := &SealedPayload{
		Ciphertext: make([]byte, len(plaintext)),
		Counter:    counter,
	}

	prev := ctr.SetCounter(counter)
	if err := ctr.Encrypt(p.Ciphertext, plaintext); err != nil {
		ctr.SetCounter(prev)
		return nil, err
	}

	tag, err := c.computeTag(p.Ciphertext, counter)
	if err != nil {
		ctr.SetCounter(prev)
		return nil, err
	}
	p.Tag = make([]byte, c.tagSize)
	copy(p.Tag, tag[:c.tagSize])
	clear(tag[:])

	return p, nil
}

// Open verifies the payload's tag and, only if it matches, decrypts the
// ciphertext.
//
// Any mismatch yields ErrAuthenticationFailed with no further detail and no
// plaintext. Open does not apply a replay policy; callers check the counter
// with a ReceptionState and accept it only after Open succeeds.
func (c *Codec) Open(p *SealedPayload) ([]byte, error) {
	if p == nil {
		return nil, ErrAuthenticationFailed
	}
	ctr, err := c.session.CTR()
	if err != nil {
		return nil, err
	}

	tag, err := c.computeTag(p.Ciphertext, p.Counter)
	if err != nil {
		return nil, err
	}
	ok := len(p.Tag) == c.tagSize && crypto.HMACEqual(tag[:c.tagSize], p.Tag)
	clear(tag[:])
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	plaintext := make([]byte, len(p.Ciphertext))
	prev := ctr.SetCounter(p.Counter)
	if err := ctr.Decrypt(plaintext, p.Ciphertext); err != nil {
		ctr.SetCounter(prev)
		return nil, err
	}
	return plaintext, nil
}

// SealFrame seals plaintext and wraps it in a frame for the codec's half.
func (c *Codec) SealFrame(plaintext []byte, counter uint32) (*Frame, error) {
	p, err := c.Seal(plaintext, counter)
	if err != nil {
		return nil, err
	}
	return &Frame{Half: c.session.Half(), Payload: *p}, nil
}

// computeTag runs a freshly initialized HMAC over ciphertext || counter.
func (c *Codec) computeTag(ciphertext []byte, counter uint32) ([crypto.SHA256LenBytes]byte, error) {
	var tag [crypto.SHA256LenBytes]byte

	mac, err := c.session.NewMAC()
	if err != nil {
		return tag, err
	}

	var cbuf [CounterSize]byte
	binary.LittleEndian.PutUint32(cbuf[:], counter)

	if _, err := mac.Write(ciphertext); err != nil {
		return tag, err
	}
	if _, err := mac.Write(cbuf[:]); err != nil {
		return tag, err
	}
	return mac.Complete()
}
