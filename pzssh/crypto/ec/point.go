package ec

import "github.com/cronokirby/saferith"

// Point is an affine curve point. The zero value is the point at infinity.
// Points are immutable; arithmetic always returns a new Point.
type Point struct {
	x, y   *saferith.Nat
	finite bool
}

// Infinity returns the identity element.
func Infinity() Point { return Point{} }

// NewPoint builds a finite point from its coordinates. The coordinates are
// reduced modulo p; the result is not checked against the curve equation.
func (c *Curve) NewPoint(x, y *saferith.Nat) Point {
	return Point{x: c.Mod(x), y: c.Mod(y), finite: true}
}

func (pt Point) IsInfinity() bool { return !pt.finite }

// X returns a copy of the x-coordinate, or zero for the point at infinity.
func (pt Point) X() *saferith.Nat {
	if !pt.finite {
		return new(saferith.Nat).SetUint64(0)
	}
	return new(saferith.Nat).SetNat(pt.x)
}

// Y returns a copy of the y-coordinate, or zero for the point at infinity.
func (pt Point) Y() *saferith.Nat {
	if !pt.finite {
		return new(saferith.Nat).SetUint64(0)
	}
	return new(saferith.Nat).SetNat(pt.y)
}

// Equal reports whether pt and q are the same point.
func (pt Point) Equal(q Point) bool {
	if !pt.finite || !q.finite {
		return pt.finite == q.finite
	}
	return pt.x.Eq(q.x) == 1 && pt.y.Eq(q.y) == 1
}

// IsOnCurve reports whether pt satisfies the curve equation. The point at
// infinity is considered on the curve.
func (c *Curve) IsOnCurve(pt Point) bool {
	if !pt.finite {
		return true
	}
	if _, _, lt := pt.x.CmpMod(c.p); lt != 1 {
		return false
	}
	if _, _, lt := pt.y.CmpMod(c.p); lt != 1 {
		return false
	}
	lhs := new(saferith.Nat).ModMul(pt.y, pt.y, c.p)
	return lhs.Eq(c.polynomial(pt.x)) == 1
}

// Add returns a + b.
func (c *Curve) Add(a, b Point) Point {
	if !a.finite {
		return b
	}
	if !b.finite {
		return a
	}
	if a.x.Eq(b.x) == 1 {
		if a.y.Eq(b.y) == 1 {
			return c.Double(a)
		}
		// b = -a
		return Infinity()
	}
	num := new(saferith.Nat).ModSub(b.y, a.y, c.p)
	den := new(saferith.Nat).ModSub(b.x, a.x, c.p)
	return c.chord(a, b.x, c.Div(num, den))
}

// Double returns 2·a.
func (c *Curve) Double(a Point) Point {
	if !a.finite || a.y.EqZero() == 1 {
		return Infinity()
	}
	three := new(saferith.Nat).SetUint64(3)
	two := new(saferith.Nat).SetUint64(2)
	num := new(saferith.Nat).ModMul(a.x, a.x, c.p)
	num.ModMul(num, three, c.p)
	num.ModAdd(num, c.a, c.p)
	den := new(saferith.Nat).ModMul(a.y, two, c.p)
	return c.chord(a, a.x, c.Div(num, den))
}

// chord finishes an addition given the slope m through a and a point with
// x-coordinate bx.
func (c *Curve) chord(a Point, bx, m *saferith.Nat) Point {
	x3 := new(saferith.Nat).ModMul(m, m, c.p)
	x3.ModSub(x3, a.x, c.p)
	x3.ModSub(x3, bx, c.p)

	y3 := new(saferith.Nat).ModSub(a.x, x3, c.p)
	y3.ModMul(y3, m, c.p)
	y3.ModSub(y3, a.y, c.p)
	return Point{x: x3, y: y3, finite: true}
}

// Negate returns -a.
func (c *Curve) Negate(a Point) Point {
	if !a.finite {
		return a
	}
	return Point{x: new(saferith.Nat).SetNat(a.x), y: new(saferith.Nat).ModNeg(a.y, c.p), finite: true}
}

// ScalarMult returns k·a using left-to-right double-and-add. k is a
// non-negative integer of any size; it is not reduced modulo n.
func (c *Curve) ScalarMult(a Point, k *saferith.Nat) Point {
	kb := trimBytes(k.Bytes())
	if len(kb) == 0 || !a.finite {
		return Infinity()
	}

	// Start at the highest set bit with r = a, then walk the remaining bits.
	top := 7
	for kb[0]>>uint(top)&1 == 0 {
		top--
	}
	r := a
	for i, byt := range kb {
		start := 7
		if i == 0 {
			start = top - 1
		}
		for bit := start; bit >= 0; bit-- {
			r = c.Double(r)
			if byt>>uint(bit)&1 == 1 {
				r = c.Add(r, a)
			}
		}
	}
	return r
}

// ScalarBaseMult returns k·G.
func (c *Curve) ScalarBaseMult(k *saferith.Nat) Point {
	return c.ScalarMult(c.g, k)
}

func trimBytes(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}
