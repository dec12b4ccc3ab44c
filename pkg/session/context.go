package session

import (
	"time"

	"github.com/backkem/keylink/pkg/crypto"
)

// Config is used to derive a session context.
type Config struct {
	// RootSecret is the shared secret from pairing (RootSecretSize bytes).
	RootSecret []byte

	// Half selects which half's keys are derived.
	Half Half

	// ECB is the block cipher adapter the counter-mode engine drives.
	// Halves on one device may share an adapter since it is one hardware
	// resource. If nil, a new adapter is built from Primitive and ECBTimeout.
	ECB *crypto.ECB

	// Primitive is the block primitive for a newly built adapter.
	// Default: crypto.SoftwareAES
	Primitive crypto.Primitive

	// ECBTimeout bounds the primitive completion wait of a newly built adapter.
	// Default: crypto.DefaultECBTimeout
	ECBTimeout time.Duration
}

// Validate checks the configuration before any key material is touched.
func (c Config) Validate() error {
	if len(c.RootSecret) != RootSecretSize {
		return ErrInvalidRootSecret
	}
	if !c.Half.IsValid() {
		return ErrInvalidHalf
	}
	return nil
}

// Context is the cryptographic state of one half: a counter-mode engine keyed
// with the half's cipher key and an HMAC key pair for its authentication key.
//
// A Context is not safe for concurrent use. The counter-mode engine carries
// scratch state; callers sealing from more than one goroutine must serialize
// access to the Context.
type Context struct {
	half  Half
	nonce [NonceSize]byte
	ctr   *crypto.AESCTR
	mac   *crypto.MACKey

	destroyed bool
}

// Derive derives the session context of one half using a software block
// primitive.
func Derive(rootSecret []byte, half Half) (*Context, error) {
	return DeriveWithConfig(Config{RootSecret: rootSecret, Half: half})
}

// DeriveWithConfig derives the session context described by config.
func DeriveWithConfig(config Config) (*Context, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	keys, err := DeriveKeys(config.RootSecret, config.Half)
	if err != nil {
		return nil, err
	}
	defer keys.Zeroize()

	ecb := config.ECB
	if ecb == nil {
		ecb = crypto.NewECB(crypto.ECBConfig{
			Primitive: config.Primitive,
			Timeout:   config.ECBTimeout,
		})
	}

	ctr, err := crypto.NewAESCTRWithECB(keys.CipherKey[:], keys.Nonce[:], ecb)
	if err != nil {
		return nil, err
	}

	return &Context{
		half:  config.Half,
		nonce: keys.Nonce,
		ctr:   ctr,
		mac:   crypto.NewMACKey(keys.AuthKey[:]),
	}, nil
}

// Half returns the half this context was derived for.
func (c *Context) Half() Half {
	return c.half
}

// Nonce returns the initial counter block derived for this half.
func (c *Context) Nonce() [NonceSize]byte {
	return c.nonce
}

// CTR returns the counter-mode engine.
func (c *Context) CTR() (*crypto.AESCTR, error) {
	if c.destroyed {
		return nil, ErrSessionDestroyed
	}
	return c.ctr, nil
}

// NewMAC returns a freshly initialized HMAC context under the authentication
// key. Each call is independent of every earlier one.
func (c *Context) NewMAC() (*crypto.HMAC, error) {
	if c.destroyed {
		return nil, ErrSessionDestroyed
	}
	return c.mac.New(), nil
}

// Destroy wipes all key material. It is called on re-pair or shutdown; the
// context must be derived again before further use.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.ctr.Zeroize()
	c.mac.Destroy()
	clear(c.nonce[:])
}

// IsDestroyed reports whether Destroy has been called.
func (c *Context) IsDestroyed() bool {
	return c.destroyed
}
