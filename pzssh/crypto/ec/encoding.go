package ec

import (
	"fmt"

	"github.com/cronokirby/saferith"
)

const (
	prefixCompressedEven = 0x02
	prefixCompressedOdd  = 0x03
	prefixUncompressed   = 0x04
)

// Marshal encodes pt in the SEC1 uncompressed form 0x04 ‖ X ‖ Y.
// The point at infinity encodes as the single byte 0x00.
func (c *Curve) Marshal(pt Point) []byte {
	if !pt.finite {
		return []byte{0x00}
	}
	out := make([]byte, 1+2*c.byteLen)
	out[0] = prefixUncompressed
	fillBytes(out[1:1+c.byteLen], pt.x)
	fillBytes(out[1+c.byteLen:], pt.y)
	return out
}

// MarshalCompressed encodes pt as 0x02 ‖ X or 0x03 ‖ X depending on the
// parity of y.
func (c *Curve) MarshalCompressed(pt Point) []byte {
	if !pt.finite {
		return []byte{0x00}
	}
	out := make([]byte, 1+c.byteLen)
	out[0] = prefixCompressedEven | pt.y.Byte(0)&1
	fillBytes(out[1:], pt.x)
	return out
}

// Unmarshal decodes a point in compressed or uncompressed SEC1 form. The
// result is always a finite point on the curve.
func (c *Curve) Unmarshal(data []byte) (Point, error) {
	if len(data) == 0 {
		return Point{}, ErrUnknownPublicKeyFormat
	}
	l := c.byteLen
	switch data[0] {
	case prefixUncompressed:
		if len(data) != 1+2*l {
			return Point{}, fmt.Errorf("%w: %d bytes for uncompressed %s point", ErrUnknownPublicKeyFormat, len(data), c.name)
		}
		x, ok := c.element(data[1 : 1+l])
		if !ok {
			return Point{}, ErrPointNotOnCurve
		}
		y, ok := c.element(data[1+l:])
		if !ok {
			return Point{}, ErrPointNotOnCurve
		}
		pt := Point{x: x, y: y, finite: true}
		if !c.IsOnCurve(pt) {
			return Point{}, ErrPointNotOnCurve
		}
		return pt, nil

	case prefixCompressedEven, prefixCompressedOdd:
		if len(data) != 1+l {
			return Point{}, fmt.Errorf("%w: %d bytes for compressed %s point", ErrUnknownPublicKeyFormat, len(data), c.name)
		}
		x, ok := c.element(data[1:])
		if !ok {
			return Point{}, ErrPointNotOnCurve
		}
		y, err := c.decompress(x, data[0]&1)
		if err != nil {
			return Point{}, err
		}
		return Point{x: x, y: y, finite: true}, nil
	}
	return Point{}, fmt.Errorf("%w: prefix 0x%02x", ErrUnknownPublicKeyFormat, data[0])
}

// element parses a big-endian field element and rejects values ≥ p.
func (c *Curve) element(b []byte) (*saferith.Nat, bool) {
	v := new(saferith.Nat).SetBytes(b)
	if _, _, lt := v.CmpMod(c.p); lt != 1 {
		return nil, false
	}
	return v.Mod(v, c.p), true
}

// decompress recovers y from x and the wanted parity of y.
func (c *Curve) decompress(x *saferith.Nat, parity byte) (*saferith.Nat, error) {
	rhs := c.polynomial(x)
	y := new(saferith.Nat).Exp(rhs, c.sqrtExp, c.p)
	if new(saferith.Nat).ModMul(y, y, c.p).Eq(rhs) != 1 {
		// x³ + ax + b is not a quadratic residue.
		return nil, ErrPointNotOnCurve
	}
	if y.Byte(0)&1 != parity {
		if y.EqZero() == 1 {
			return nil, ErrPointNotOnCurve
		}
		y.ModNeg(y, c.p)
	}
	return y, nil
}
