package chacha20poly1305

import (
	"encoding/hex"

	"github.com/cronokirby/saferith"
)

const tagSize = 16

// 2^130 - 5
var poly1305P = func() *saferith.Modulus {
	b, err := hex.DecodeString("03fffffffffffffffffffffffffffffffb")
	if err != nil {
		panic(err)
	}
	return saferith.ModulusFromBytes(b)
}()

// poly1305Sum computes the one-time authenticator of msg under the 32-byte
// key r ‖ s.
func poly1305Sum(key []byte, msg []byte) [tagSize]byte {
	rBytes := make([]byte, 16)
	copy(rBytes, key[:16])
	// clamp r
	rBytes[3] &= 15
	rBytes[7] &= 15
	rBytes[11] &= 15
	rBytes[15] &= 15
	rBytes[4] &= 252
	rBytes[8] &= 252
	rBytes[12] &= 252

	r := leNat(rBytes)
	r.Mod(r, poly1305P)
	s := leNat(key[16:32])

	acc := new(saferith.Nat).SetUint64(0)
	acc.Mod(acc, poly1305P)
	var chunk [17]byte
	for len(msg) > 0 {
		n := min(len(msg), 16)
		clear(chunk[:])
		copy(chunk[:], msg[:n])
		chunk[n] = 1
		c := leNat(chunk[:n+1])
		c.Mod(c, poly1305P)

		acc.ModAdd(acc, c, poly1305P)
		acc.ModMul(acc, r, poly1305P)
		msg = msg[n:]
	}

	// (acc + s) mod 2^128
	sum := new(saferith.Nat).Add(acc, s, 128)

	var tag [tagSize]byte
	be := sum.Bytes()
	for len(be) > 0 && be[0] == 0 {
		be = be[1:]
	}
	for i := 0; i < len(be) && i < tagSize; i++ {
		tag[i] = be[len(be)-1-i]
	}
	return tag
}

// leNat reads a little-endian integer.
func leNat(le []byte) *saferith.Nat {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(saferith.Nat).SetBytes(be)
}
