package message

import (
	"encoding/binary"
)

// SealedPayload is one authenticated report as exchanged over the radio.
//
// Tag = HMAC(auth key, Ciphertext || Counter) truncated to len(Tag), and
// Ciphertext = CTR(cipher key, counter block with Counter, plaintext).
type SealedPayload struct {
	Ciphertext []byte
	Counter    uint32
	Tag        []byte
}

// Size returns the encoded size in bytes.
func (p *SealedPayload) Size() int {
	return len(p.Ciphertext) + CounterSize + len(p.Tag)
}

// EncodeTo writes the payload into buf and returns the number of bytes
// written. buf must be at least Size() bytes.
func (p *SealedPayload) EncodeTo(buf []byte) int {
	n := copy(buf, p.Ciphertext)
	binary.LittleEndian.PutUint32(buf[n:], p.Counter)
	n += CounterSize
	n += copy(buf[n:], p.Tag)
	return n
}

// Encode returns the wire encoding of the payload.
func (p *SealedPayload) Encode() []byte {
	buf := make([]byte, p.Size())
	p.EncodeTo(buf)
	return buf
}

// DecodeSealedPayload parses a sealed payload whose tag is tagSize bytes.
// The ciphertext length is whatever remains; an empty ciphertext is valid.
// The returned payload does not alias data.
func DecodeSealedPayload(data []byte, tagSize int) (*SealedPayload, error) {
	if tagSize < MinTagSize || tagSize > MaxTagSize {
		return nil, ErrInvalidTagSize
	}
	ctLen := len(data) - CounterSize - tagSize
	if ctLen < 0 {
		return nil, ErrInvalidLength
	}

	p := &SealedPayload{
		Ciphertext: make([]byte, ctLen),
		Counter:    binary.LittleEndian.Uint32(data[ctLen:]),
		Tag:        make([]byte, tagSize),
	}
	copy(p.Ciphertext, data[:ctLen])
	copy(p.Tag, data[ctLen+CounterSize:])
	return p, nil
}

// SealedSize returns the encoded size of a sealed payload for a plaintext of
// plaintextLen bytes.
func SealedSize(plaintextLen, tagSize int) int {
	return plaintextLen + CounterSize + tagSize
}
