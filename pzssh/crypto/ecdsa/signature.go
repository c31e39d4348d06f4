package ecdsa

import (
	"encoding/binary"
	"fmt"

	"github.com/cronokirby/saferith"
)

// Signature is an ECDSA (r, s) pair.
type Signature struct {
	R, S *saferith.Nat
}

// Marshal encodes the pair as mpint(r) ‖ mpint(s).
func (sig *Signature) Marshal() []byte {
	out := appendMPInt(nil, sig.R)
	return appendMPInt(out, sig.S)
}

func appendMPInt(dst []byte, v *saferith.Nat) []byte {
	mag := trim(v.Bytes())
	pad := 0
	if len(mag) > 0 && mag[0]&0x80 != 0 {
		pad = 1
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(mag)+pad))
	if pad == 1 {
		dst = append(dst, 0x00)
	}
	return append(dst, mag...)
}

// ParseSignature decodes mpint(r) ‖ mpint(s). Only the canonical encoding
// produced by Marshal is accepted, with no trailing bytes. Range checks
// against the curve order happen at verification time.
func ParseSignature(b []byte) (*Signature, error) {
	r, rest, err := readMPInt(b)
	if err != nil {
		return nil, err
	}
	s, rest, err := readMPInt(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidSignature, len(rest))
	}
	return &Signature{R: r, S: s}, nil
}

func readMPInt(b []byte) (*saferith.Nat, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: short length", ErrInvalidSignature)
	}
	n := binary.BigEndian.Uint32(b)
	b = b[4:]
	if n == 0 || uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("%w: bad mpint length %d", ErrInvalidSignature, n)
	}
	mag := b[:n]
	switch {
	case mag[0]&0x80 != 0:
		return nil, nil, fmt.Errorf("%w: negative mpint", ErrInvalidSignature)
	case mag[0] == 0 && (len(mag) == 1 || mag[1]&0x80 == 0):
		return nil, nil, fmt.Errorf("%w: non-minimal mpint", ErrInvalidSignature)
	}
	return new(saferith.Nat).SetBytes(mag), b[n:], nil
}
