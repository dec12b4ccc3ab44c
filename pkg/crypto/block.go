// Block cipher adapter for the link's single-block AES-128 primitive.
//
// The primitive is modeled after an ECB encryption peripheral: the caller
// loads a key and one cleartext block into a shared state structure, starts
// the operation and polls for completion or error. Software implementations
// complete synchronously inside Start.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Block cipher constants.
const (
	// BlockSize is the AES block size in bytes.
	BlockSize = 16

	// BlockKeySize is the AES-128 key size in bytes.
	BlockKeySize = 16

	// DefaultECBTimeout bounds how long Encrypt waits for the primitive to
	// signal completion. A working engine finishes a block in microseconds.
	DefaultECBTimeout = 100 * time.Millisecond
)

// Errors for block cipher operations.
var (
	ErrPrimitiveTimeout = errors.New("ecb: primitive did not signal completion before deadline")
	ErrPrimitiveFailed  = errors.New("ecb: primitive signaled an error")
	ErrECBNotArmed      = errors.New("ecb: no state armed")
	ErrNoPrimitive      = errors.New("ecb: no primitive configured")
)

// ECBState is the data block exchanged with the primitive: a 128-bit key,
// one cleartext block and the resulting ciphertext block.
type ECBState struct {
	Key        [BlockKeySize]byte
	Cleartext  [BlockSize]byte
	Ciphertext [BlockSize]byte
}

// Primitive is a single-block AES-128 encryption engine.
//
// Start begins encrypting state.Cleartext under state.Key into
// state.Ciphertext. Done reports whether the operation has completed; a non-nil
// error means the primitive signaled failure. Implementations are not required
// to be safe for concurrent use: a hardware engine is one shared resource and
// callers must serialize access to it.
type Primitive interface {
	Start(state *ECBState) error
	Done() (bool, error)
}

// SoftwareAES is a Primitive backed by crypto/aes. It completes inside Start.
// The expanded key schedule is cached and rebuilt only when the key changes.
type SoftwareAES struct {
	key   [BlockKeySize]byte
	block cipher.Block
	err   error
}

// NewSoftwareAES returns a software AES-128 primitive.
func NewSoftwareAES() *SoftwareAES {
	return &SoftwareAES{}
}

// Start encrypts state.Cleartext into state.Ciphertext.
func (s *SoftwareAES) Start(state *ECBState) error {
	if s.block == nil || s.key != state.Key {
		block, err := aes.NewCipher(state.Key[:])
		if err != nil {
			s.err = err
			return err
		}
		s.block = block
		s.key = state.Key
	}
	s.err = nil
	s.block.Encrypt(state.Ciphertext[:], state.Cleartext[:])
	return nil
}

// Done always reports completion; the last error from Start, if any, is returned.
func (s *SoftwareAES) Done() (bool, error) {
	return true, s.err
}

// ECBConfig configures an ECB adapter.
type ECBConfig struct {
	// Primitive performs the block encryption.
	// If nil, a SoftwareAES primitive is used.
	Primitive Primitive

	// Timeout bounds the completion wait.
	// Default: DefaultECBTimeout
	Timeout time.Duration
}

// ECB adapts a Primitive to a blocking single-block encrypt call with a
// bounded completion wait.
//
// The wait is a busy-poll against a wall-clock deadline. It yields the
// processor between polls but is not cancellable: once started, an operation
// runs to completion or to ErrPrimitiveTimeout.
type ECB struct {
	prim    Primitive
	timeout time.Duration
	state   *ECBState
}

// NewECB creates a block cipher adapter.
func NewECB(config ECBConfig) *ECB {
	e := &ECB{
		prim:    config.Primitive,
		timeout: config.Timeout,
	}
	if e.prim == nil {
		e.prim = NewSoftwareAES()
	}
	if e.timeout <= 0 {
		e.timeout = DefaultECBTimeout
	}
	return e
}

// Init arms the adapter with the state block used by subsequent Encrypt
// calls. Re-arming with the state already armed is a no-op.
func (e *ECB) Init(state *ECBState) error {
	if state == nil {
		return ErrECBNotArmed
	}
	if e.prim == nil {
		return ErrNoPrimitive
	}
	if e.state != state {
		e.state = state
	}
	return nil
}

// Encrypt encrypts the armed state's cleartext block in place into its
// ciphertext block, waiting at most the configured timeout for completion.
func (e *ECB) Encrypt() error {
	if e.state == nil {
		return ErrECBNotArmed
	}

	deadline := time.Now().Add(e.timeout)

	if err := e.prim.Start(e.state); err != nil {
		return fmt.Errorf("%w: %v", ErrPrimitiveFailed, err)
	}

	for {
		done, err := e.prim.Done()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPrimitiveFailed, err)
		}
		if done {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrPrimitiveTimeout
		}
		runtime.Gosched()
	}
}

// Timeout returns the configured completion deadline.
func (e *ECB) Timeout() time.Duration {
	return e.timeout
}
