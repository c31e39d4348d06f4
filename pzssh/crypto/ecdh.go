package crypto

import (
	"errors"
	"fmt"

	"github.com/cronokirby/saferith"

	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/crypto/random"
)

var ErrInvalidPublicKey = errors.New("crypto: invalid ECDH public key")

// ECDHKeyPair is an ephemeral key pair on a NIST curve.
type ECDHKeyPair struct {
	Curve *ec.Curve
	// PublicKey is the uncompressed SEC1 encoding of d·G.
	PublicKey  []byte
	privateKey *saferith.Nat
}

// GenerateECDH generates a fresh ephemeral key pair on curve.
func GenerateECDH(curve *ec.Curve) (*ECDHKeyPair, error) {
	d, err := random.Scalar(nil, curve.N())
	if err != nil {
		return nil, err
	}
	return &ECDHKeyPair{
		Curve:      curve,
		PublicKey:  curve.Marshal(curve.ScalarBaseMult(d)),
		privateKey: d,
	}, nil
}

// ECDH computes the shared secret with a peer's encoded public key: the
// x-coordinate of d·Q as a fixed-length big-endian field element. The raw
// secret should be passed through a KDF.
func ECDH(kp *ECDHKeyPair, peerPublicKey []byte) ([]byte, error) {
	q, err := kp.Curve.Unmarshal(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	shared := kp.Curve.ScalarMult(q, kp.privateKey)
	if shared.IsInfinity() {
		return nil, ErrInvalidPublicKey
	}
	return kp.Curve.ElementBytes(shared.X()), nil
}
