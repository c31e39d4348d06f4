package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/TheusHen/pzssh/pzssh/crypto/random"
	"github.com/TheusHen/pzssh/pzssh/identity"
)

const NonceSize = 32

var (
	ErrHelloVersion       = errors.New("protocol: hello version mismatch")
	ErrHelloMissingKey    = errors.New("protocol: hello missing key")
	ErrHelloBadNonce      = errors.New("protocol: hello nonce must be 32 bytes")
	ErrNoCommonAlgorithm  = errors.New("protocol: no common algorithm")
	ErrAuthBadSignature   = errors.New("protocol: auth invalid signature")
	ErrAuthMissingPayload = errors.New("protocol: auth missing signature")
)

// Hello opens a handshake. It carries the long-term host key, the ephemeral
// ECDH key and the algorithms the sender supports in preference order.
//
// Hello itself is not signed: both encoded HELLOs enter the exchange hash,
// which each side signs in its AUTH message.
type Hello struct {
	Version      string            `cbor:"1,keyasint"`
	HostKey      []byte            `cbor:"2,keyasint"`
	EphemeralKey []byte            `cbor:"3,keyasint"`
	Nonce        []byte            `cbor:"4,keyasint"`
	TimestampSec int64             `cbor:"5,keyasint"`
	Ciphers      []string          `cbor:"6,keyasint"`
	Compressions []string          `cbor:"7,keyasint"`
	Capabilities map[string]string `cbor:"8,keyasint,omitempty"`
}

// NewHello builds a HELLO for the host key kp and ephemeral public key eph.
func NewHello(kp identity.KeyPair, eph []byte, ciphers, compressions []string, capabilities map[string]string) (Hello, error) {
	nonce, err := random.Bytes(nil, NonceSize)
	if err != nil {
		return Hello{}, err
	}
	capsCopy := map[string]string{}
	for k, v := range capabilities {
		capsCopy[k] = v
	}
	return Hello{
		Version:      Version,
		HostKey:      append([]byte(nil), kp.PublicKey...),
		EphemeralKey: append([]byte(nil), eph...),
		Nonce:        nonce,
		TimestampSec: time.Now().Unix(),
		Ciphers:      append([]string(nil), ciphers...),
		Compressions: append([]string(nil), compressions...),
		Capabilities: capsCopy,
	}, nil
}

// PeerID returns the identifier derived from the host key.
func (h Hello) PeerID() identity.PeerID {
	return identity.PeerIDFromPublicKey(h.HostKey)
}

// Validate checks the fields a receiver relies on.
func (h Hello) Validate() error {
	if h.Version != Version {
		return fmt.Errorf("%w: %q", ErrHelloVersion, h.Version)
	}
	if len(h.HostKey) == 0 || len(h.EphemeralKey) == 0 {
		return ErrHelloMissingKey
	}
	if err := identity.ValidatePublicKey(h.HostKey); err != nil {
		return err
	}
	if len(h.Nonce) != NonceSize {
		return ErrHelloBadNonce
	}
	if len(h.Ciphers) == 0 {
		return fmt.Errorf("%w: empty cipher list", ErrNoCommonAlgorithm)
	}
	return nil
}

func EncodeHello(h Hello) ([]byte, error) {
	return cbor.Marshal(h)
}

func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	if err := cbor.Unmarshal(b, &h); err != nil {
		return Hello{}, err
	}
	if err := h.Validate(); err != nil {
		return Hello{}, err
	}
	return h, nil
}

// Negotiate returns the first entry of client that server also lists.
func Negotiate(client, server []string) (string, error) {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c, nil
			}
		}
	}
	return "", ErrNoCommonAlgorithm
}

// Auth proves possession of the host key by signing the exchange hash.
type Auth struct {
	Signature []byte `cbor:"1,keyasint"`
}

func NewAuth(kp identity.KeyPair, exchangeHash []byte) (Auth, error) {
	sig, err := kp.Sign(exchangeHash)
	if err != nil {
		return Auth{}, err
	}
	return Auth{Signature: sig}, nil
}

// Verify checks the signature against the host key announced in HELLO.
func (a Auth) Verify(hostKey, exchangeHash []byte) error {
	if len(a.Signature) == 0 {
		return ErrAuthMissingPayload
	}
	if !identity.Verify(hostKey, exchangeHash, a.Signature) {
		return ErrAuthBadSignature
	}
	return nil
}

func EncodeAuth(a Auth) ([]byte, error) {
	return cbor.Marshal(a)
}

func DecodeAuth(b []byte) (Auth, error) {
	var a Auth
	if err := cbor.Unmarshal(b, &a); err != nil {
		return Auth{}, err
	}
	return a, nil
}
