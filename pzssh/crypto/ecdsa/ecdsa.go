// Package ecdsa implements ECDSA over the curves of package ec, hashing
// messages with SHA-256.
//
// Signatures are encoded SSH style: mpint(r) ‖ mpint(s), where each mpint is
// a 4-byte big-endian length followed by the big-endian magnitude, with a
// leading 0x00 when the top bit of the magnitude is set. There is no outer
// length: an SSH signature blob wraps this pair in one more string, and
// adding or removing that wrapper is left to the caller.
package ecdsa

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"

	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/crypto/random"
	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

var (
	ErrInvalidSignature = errors.New("ecdsa: invalid signature")
	ErrInvalidKey       = errors.New("ecdsa: invalid private key")
)

// PublicKey is a curve point Q = d·G.
type PublicKey struct {
	Curve *ec.Curve
	Q     ec.Point
}

// PrivateKey holds the secret scalar d ∈ [1, n-1] and its public point.
type PrivateKey struct {
	PublicKey
	D *saferith.Nat
}

// GenerateKey draws d uniformly from [1, n-1]. A nil rand uses crypto/rand.
func GenerateKey(curve *ec.Curve, rand io.Reader) (*PrivateKey, error) {
	d, err := random.Scalar(rand, curve.N())
	if err != nil {
		return nil, err
	}
	return &PrivateKey{
		PublicKey: PublicKey{Curve: curve, Q: curve.ScalarBaseMult(d)},
		D:         d,
	}, nil
}

// NewPrivateKey loads a big-endian secret scalar.
func NewPrivateKey(curve *ec.Curve, d []byte) (*PrivateKey, error) {
	k := new(saferith.Nat).SetBytes(d)
	if k.EqZero() == 1 {
		return nil, ErrInvalidKey
	}
	if _, _, lt := k.CmpMod(curve.N()); lt != 1 {
		return nil, ErrInvalidKey
	}
	k.Mod(k, curve.N())
	return &PrivateKey{
		PublicKey: PublicKey{Curve: curve, Q: curve.ScalarBaseMult(k)},
		D:         k,
	}, nil
}

// NewPublicKey decodes a SEC1 point (compressed or uncompressed).
func NewPublicKey(curve *ec.Curve, encoded []byte) (*PublicKey, error) {
	q, err := curve.Unmarshal(encoded)
	if err != nil {
		return nil, err
	}
	return &PublicKey{Curve: curve, Q: q}, nil
}

// Bytes returns the scalar as a big-endian value of the curve's order length.
func (priv *PrivateKey) Bytes() []byte {
	out := make([]byte, (priv.Curve.N().BitLen()+7)/8)
	b := trim(priv.D.Bytes())
	copy(out[len(out)-len(b):], b)
	return out
}

// Public returns the public half of priv.
func (priv *PrivateKey) Public() *PublicKey {
	pub := priv.PublicKey
	return &pub
}

// Bytes returns the uncompressed SEC1 encoding of the public point.
func (pub *PublicKey) Bytes() []byte { return pub.Curve.Marshal(pub.Q) }

// Equal reports whether pub and other are the same key on the same curve.
func (pub *PublicKey) Equal(other *PublicKey) bool {
	return other != nil && pub.Curve == other.Curve && pub.Q.Equal(other.Q)
}

// Sign signs SHA-256(message) with priv. A nil rand uses crypto/rand.
func Sign(rand io.Reader, priv *PrivateKey, message []byte) ([]byte, error) {
	sig, err := SignRaw(rand, priv, message)
	if err != nil {
		return nil, err
	}
	return sig.Marshal(), nil
}

// SignRaw is Sign returning the unencoded (r, s) pair.
func SignRaw(rand io.Reader, priv *PrivateKey, message []byte) (*Signature, error) {
	c := priv.Curve
	n := c.N()
	z := hashToScalar(c, message)

	for i := 0; i < 64; i++ {
		k, err := random.Scalar(rand, n)
		if err != nil {
			return nil, fmt.Errorf("ecdsa: nonce: %w", err)
		}
		r := new(saferith.Nat).Mod(c.ScalarBaseMult(k).X(), n)
		if r.EqZero() == 1 {
			continue
		}
		s := new(saferith.Nat).ModMul(r, priv.D, n)
		s.ModAdd(s, z, n)
		s.ModMul(s, new(saferith.Nat).ModInverse(k, n), n)
		if s.EqZero() == 1 {
			continue
		}
		return &Signature{R: r, S: s}, nil
	}
	return nil, errors.New("ecdsa: failed to produce a signature")
}

// Verify reports whether sig is a valid encoded signature of message under
// pub. Malformed encodings, out-of-range values and mismatches all yield
// false.
func Verify(pub *PublicKey, message, sig []byte) bool {
	return VerifyError(pub, message, sig) == nil
}

// VerifyError is Verify returning ErrInvalidSignature on failure.
func VerifyError(pub *PublicKey, message, sig []byte) error {
	parsed, err := ParseSignature(sig)
	if err != nil {
		return err
	}
	if !VerifySignature(pub, message, parsed) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifySignature checks an already parsed (r, s) pair.
func VerifySignature(pub *PublicKey, message []byte, sig *Signature) bool {
	c := pub.Curve
	n := c.N()
	if !inRange(sig.R, n) || !inRange(sig.S, n) {
		return false
	}
	if pub.Q.IsInfinity() || !c.IsOnCurve(pub.Q) {
		return false
	}
	r := new(saferith.Nat).Mod(sig.R, n)
	s := new(saferith.Nat).Mod(sig.S, n)

	z := hashToScalar(c, message)
	w := new(saferith.Nat).ModInverse(s, n)
	u1 := new(saferith.Nat).ModMul(z, w, n)
	u2 := new(saferith.Nat).ModMul(r, w, n)

	x := c.Add(c.ScalarBaseMult(u1), c.ScalarMult(pub.Q, u2))
	if x.IsInfinity() {
		return false
	}
	return new(saferith.Nat).Mod(x.X(), n).Eq(r) == 1
}

func inRange(v *saferith.Nat, n *saferith.Modulus) bool {
	if v == nil || v.EqZero() == 1 {
		return false
	}
	_, _, lt := v.CmpMod(n)
	return lt == 1
}

// hashToScalar interprets the full SHA-256 digest as a big-endian integer
// and reduces it modulo n.
func hashToScalar(c *ec.Curve, message []byte) *saferith.Nat {
	digest := sha2.Sum256(message)
	z := new(saferith.Nat).SetBytes(digest[:])
	return z.Mod(z, c.N())
}

func trim(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}
