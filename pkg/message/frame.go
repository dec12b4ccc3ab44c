package message

import (
	"github.com/backkem/keylink/pkg/session"
)

// Frame is one radio packet: the sending half followed by its sealed payload.
//
// The half byte only selects which session verifies the payload. It is not
// authenticated by itself; a frame claiming the wrong half fails Open because
// the tag was computed under the other half's key.
type Frame struct {
	Half    session.Half
	Payload SealedPayload
}

// Size returns the encoded size in bytes.
func (f *Frame) Size() int {
	return FrameHeaderSize + f.Payload.Size()
}

// EncodeTo writes the frame into buf and returns the number of bytes written.
func (f *Frame) EncodeTo(buf []byte) int {
	buf[0] = byte(f.Half)
	return FrameHeaderSize + f.Payload.EncodeTo(buf[FrameHeaderSize:])
}

// Encode returns the wire encoding of the frame.
func (f *Frame) Encode() []byte {
	buf := make([]byte, f.Size())
	f.EncodeTo(buf)
	return buf
}

// DecodeFrame parses a frame whose payload tag is tagSize bytes.
func DecodeFrame(data []byte, tagSize int) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, ErrFrameTooShort
	}
	half := session.Half(data[0])
	if !half.IsValid() {
		return nil, ErrUnknownHalf
	}

	p, err := DecodeSealedPayload(data[FrameHeaderSize:], tagSize)
	if err != nil {
		return nil, err
	}
	return &Frame{Half: half, Payload: *p}, nil
}

// FrameSize returns the encoded size of a frame carrying a report of
// reportLen bytes.
func FrameSize(reportLen, tagSize int) int {
	return FrameHeaderSize + SealedSize(reportLen, tagSize)
}
