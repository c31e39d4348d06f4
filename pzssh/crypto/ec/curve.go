// Package ec implements affine point arithmetic on short Weierstrass curves
// y² = x³ + a·x + b over prime fields.
//
// Three named curves are supported: nistp256, nistp384 and nistp521. A Curve
// is an immutable value that every operation receives explicitly, so several
// curves can be used side by side in one process.
//
// The arithmetic is not constant time.
package ec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/cronokirby/saferith"
)

var (
	ErrCurveUnrecognized      = errors.New("ec: unrecognized curve")
	ErrUnknownPublicKeyFormat = errors.New("ec: unknown public key format")
	ErrPointNotOnCurve        = errors.New("ec: point not on curve")
)

// Curve holds the domain parameters of a named prime curve.
type Curve struct {
	name    string
	p       *saferith.Modulus
	n       *saferith.Modulus
	a, b    *saferith.Nat
	g       Point
	sqrtExp *saferith.Nat // (p+1)/4, valid because p ≡ 3 (mod 4)
	byteLen int
}

type curveHex struct {
	name                       string
	p, n, a, b, gx, gy, sqrtExp string
}

var (
	P256 = sync.OnceValue(func() *Curve {
		return mustCurve(curveHex{
			name:    "nistp256",
			p:       "ffffffff00000001000000000000000000000000ffffffffffffffffffffffff",
			n:       "ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551",
			a:       "ffffffff00000001000000000000000000000000fffffffffffffffffffffffc",
			b:       "5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b",
			gx:      "6b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296",
			gy:      "4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5",
			sqrtExp: "3fffffffc0000000400000000000000000000000400000000000000000000000",
		})
	})

	P384 = sync.OnceValue(func() *Curve {
		return mustCurve(curveHex{
			name:    "nistp384",
			p:       "fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffeffffffff0000000000000000ffffffff",
			n:       "ffffffffffffffffffffffffffffffffffffffffffffffffc7634d81f4372ddf581a0db248b0a77aecec196accc52973",
			a:       "fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffeffffffff0000000000000000fffffffc",
			b:       "b3312fa7e23ee7e4988e056be3f82d19181d9c6efe8141120314088f5013875ac656398d8a2ed19d2a85c8edd3ec2aef",
			gx:      "aa87ca22be8b05378eb1c71ef320ad746e1d3b628ba79b9859f741e082542a385502f25dbf55296c3a545e3872760ab7",
			gy:      "3617de4a96262c6f5d9e98bf9292dc29f8f41dbd289a147ce9da3113b5f0b8c00a60b1ce1d7e819d7a431d7c90ea0e5f",
			sqrtExp: "3fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffbfffffffc00000000000000040000000",
		})
	})

	P521 = sync.OnceValue(func() *Curve {
		return mustCurve(curveHex{
			name:    "nistp521",
			p:       "01ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
			n:       "01fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffa51868783bf2f966b7fcc0148f709a5d03bb5c9b8899c47aebb6fb71e91386409",
			a:       "01fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffc",
			b:       "0051953eb9618e1c9a1f929a21a0b68540eea2da725b99b315f3b8b489918ef109e156193951ec7e937b1652c0bd3bb1bf073573df883d2c34f1ef451fd46b503f00",
			gx:      "00c6858e06b70404e9cd9e3ecb662395b4429c648139053fb521f828af606b4d3dbaa14b5e77efe75928fe1dc127a2ffa8de3348b3c1856a429bf97e7e31c2e5bd66",
			gy:      "011839296a789a3bc0045c8a5fb42c7d1bd998f54449579b446817afbd17273e662c97ee72995ef42640c550b9013fad0761353c7086a272c24088be94769fd16650",
			sqrtExp: "8000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000",
		})
	})
)

// CurveByName returns the curve registered under name. Both the SSH names
// (nistp256) and the NIST names (P-256) are accepted.
func CurveByName(name string) (*Curve, error) {
	switch name {
	case "nistp256", "P-256":
		return P256(), nil
	case "nistp384", "P-384":
		return P384(), nil
	case "nistp521", "P-521":
		return P521(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrCurveUnrecognized, name)
}

func mustCurve(h curveHex) *Curve {
	p := saferith.ModulusFromBytes(mustHex(h.p))
	c := &Curve{
		name:    h.name,
		p:       p,
		n:       saferith.ModulusFromBytes(mustHex(h.n)),
		a:       new(saferith.Nat).SetBytes(mustHex(h.a)),
		b:       new(saferith.Nat).SetBytes(mustHex(h.b)),
		sqrtExp: new(saferith.Nat).SetBytes(mustHex(h.sqrtExp)),
		byteLen: (p.BitLen() + 7) / 8,
	}
	c.a.Mod(c.a, p)
	c.b.Mod(c.b, p)
	gx := new(saferith.Nat).SetBytes(mustHex(h.gx))
	gy := new(saferith.Nat).SetBytes(mustHex(h.gy))
	c.g = Point{x: gx.Mod(gx, p), y: gy.Mod(gy, p), finite: true}
	if !c.IsOnCurve(c.g) {
		panic("ec: generator of " + h.name + " is not on the curve")
	}
	return c
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Name returns the SSH name of the curve, e.g. "nistp256".
func (c *Curve) Name() string { return c.name }

// P returns the field modulus.
func (c *Curve) P() *saferith.Modulus { return c.p }

// N returns the order of the generator.
func (c *Curve) N() *saferith.Modulus { return c.n }

// Generator returns the base point G.
func (c *Curve) Generator() Point { return c.g }

// BitSize returns the size of the field in bits.
func (c *Curve) BitSize() int { return c.p.BitLen() }

// ByteLen returns the length of an encoded field element.
func (c *Curve) ByteLen() int { return c.byteLen }

// Mod reduces x modulo p.
func (c *Curve) Mod(x *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Mod(x, c.p)
}

// Div returns a·b⁻¹ mod p. b must be non-zero modulo p.
func (c *Curve) Div(a, b *saferith.Nat) *saferith.Nat {
	inv := new(saferith.Nat).ModInverse(b, c.p)
	return inv.ModMul(a, inv, c.p)
}

// polynomial returns x³ + a·x + b mod p.
func (c *Curve) polynomial(x *saferith.Nat) *saferith.Nat {
	r := new(saferith.Nat).ModMul(x, x, c.p)
	r.ModAdd(r, c.a, c.p)
	r.ModMul(r, x, c.p)
	return r.ModAdd(r, c.b, c.p)
}

// ElementBytes encodes a field element as a big-endian integer left-padded
// to ByteLen bytes.
func (c *Curve) ElementBytes(x *saferith.Nat) []byte {
	out := make([]byte, c.byteLen)
	fillBytes(out, x)
	return out
}

func fillBytes(dst []byte, x *saferith.Nat) {
	b := trimBytes(x.Bytes())
	copy(dst[len(dst)-len(b):], b)
}
