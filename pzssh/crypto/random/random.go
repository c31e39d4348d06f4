// Package random draws bytes, bounded integers and curve scalars from a
// cryptographically secure source.
//
// Every function takes an io.Reader; passing nil selects crypto/rand.Reader.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/cronokirby/saferith"
)

const maxIterations = 256

var (
	ErrInvalidRange  = errors.New("random: invalid range")
	ErrMaxIterations = fmt.Errorf("random: no sample accepted after %d draws", maxIterations)
)

func reader(r io.Reader) io.Reader {
	if r == nil {
		return rand.Reader
	}
	return r
}

// Bytes returns n bytes read from r.
func Bytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader(r), buf); err != nil {
		return nil, fmt.Errorf("random: read: %w", err)
	}
	return buf, nil
}

// Int returns a uniform integer in [min, max]. Candidates are masked to the
// smallest power of two covering max-min and rejected when they overshoot.
func Int(r io.Reader, min, max int) (int, error) {
	if max < min {
		return 0, ErrInvalidRange
	}
	span := uint64(max - min)
	if span == 0 {
		return min, nil
	}
	mask := uint64(1)<<bits.Len64(span) - 1

	var buf [8]byte
	rd := reader(r)
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rd, buf[:]); err != nil {
			return 0, fmt.Errorf("random: read: %w", err)
		}
		v := binary.BigEndian.Uint64(buf[:]) & mask
		if v <= span {
			return min + int(v), nil
		}
	}
	return 0, ErrMaxIterations
}

// Scalar returns a uniform integer in [1, n-1]. Bits above the bit length of
// n are cleared before the range check, so each draw is accepted with
// probability at least one half.
func Scalar(r io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	bitLen := n.BitLen()
	buf := make([]byte, (bitLen+7)/8)
	excess := uint(len(buf)*8 - bitLen)

	rd := reader(r)
	out := new(saferith.Nat)
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, fmt.Errorf("random: read: %w", err)
		}
		buf[0] &= 0xff >> excess
		out.SetBytes(buf)
		if out.EqZero() == 1 {
			continue
		}
		if _, _, lt := out.CmpMod(n); lt == 1 {
			return out.Mod(out, n), nil
		}
	}
	return nil, ErrMaxIterations
}
