// Package identity holds the long-term ECDSA host key of a peer and the
// PeerID derived from it.
package identity

import (
	"errors"

	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/crypto/ecdsa"
)

var ErrInvalidPublicKey = errors.New("identity: invalid public key")

// KeyPair holds an ECDSA nistp256 host key pair.
type KeyPair struct {
	// PublicKey is the uncompressed SEC1 encoding of the public point.
	PublicKey  []byte
	PrivateKey *ecdsa.PrivateKey
}

func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdsa.GenerateKey(ec.P256(), nil)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{PublicKey: priv.PublicKey.Bytes(), PrivateKey: priv}, nil
}

// NewKeyPair loads a key pair from the raw private scalar. If publicKey is
// non-nil it must match the scalar.
func NewKeyPair(privateKey, publicKey []byte) (KeyPair, error) {
	priv, err := ecdsa.NewPrivateKey(ec.P256(), privateKey)
	if err != nil {
		return KeyPair{}, err
	}
	if publicKey != nil {
		pub, err := ecdsa.NewPublicKey(ec.P256(), publicKey)
		if err != nil {
			return KeyPair{}, err
		}
		if !pub.Equal(&priv.PublicKey) {
			return KeyPair{}, errors.New("identity: public key does not match private key")
		}
	}
	return KeyPair{PublicKey: priv.PublicKey.Bytes(), PrivateKey: priv}, nil
}

func (kp KeyPair) PeerID() PeerID {
	return PeerIDFromPublicKey(kp.PublicKey)
}

func (kp KeyPair) Sign(message []byte) ([]byte, error) {
	return ecdsa.Sign(nil, kp.PrivateKey, message)
}

// Verify checks an mpint-encoded ECDSA signature against an encoded public key.
func Verify(publicKey, message, signature []byte) bool {
	pub, err := ecdsa.NewPublicKey(ec.P256(), publicKey)
	if err != nil {
		return false
	}
	return ecdsa.Verify(pub, message, signature)
}

// ValidatePublicKey reports whether publicKey decodes to a nistp256 point.
func ValidatePublicKey(publicKey []byte) error {
	if _, err := ec.P256().Unmarshal(publicKey); err != nil {
		return errors.Join(ErrInvalidPublicKey, err)
	}
	return nil
}
