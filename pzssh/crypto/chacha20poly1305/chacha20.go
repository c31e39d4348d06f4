package chacha20poly1305

import (
	"encoding/binary"
	"math/bits"
)

// "expand 32-byte k"
var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// chachaState is the 16-word input of the block function:
// constant ‖ key ‖ counter ‖ nonce.
type chachaState struct {
	words     [16]uint32
	exhausted bool
}

func newState(key *[KeySize]byte, counter uint32, nonce []byte) chachaState {
	var s chachaState
	copy(s.words[:4], sigma[:])
	for i := 0; i < 8; i++ {
		s.words[4+i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	s.words[12] = counter
	for i := 0; i < 3; i++ {
		s.words[13+i] = binary.LittleEndian.Uint32(nonce[i*4:])
	}
	return s
}

// next writes one keystream block and advances the 32-bit counter. The
// counter is not allowed to wrap.
func (s *chachaState) next(out *[blockSize]byte) error {
	if s.exhausted {
		return ErrCounterOverflow
	}
	chachaBlock(&s.words, out)
	if s.words[12] == ^uint32(0) {
		s.exhausted = true
	} else {
		s.words[12]++
	}
	return nil
}

// xor transforms in with successive keystream blocks, using only the needed
// prefix of the last block.
func (s *chachaState) xor(out, in []byte) ([]byte, error) {
	var ks [blockSize]byte
	for len(in) > 0 {
		if err := s.next(&ks); err != nil {
			return nil, err
		}
		n := min(len(in), blockSize)
		for i := 0; i < n; i++ {
			out = append(out, in[i]^ks[i])
		}
		in = in[n:]
	}
	return out, nil
}

func quarterRound(a, b, c, d uint32) (uint32, uint32, uint32, uint32) {
	a += b
	d = bits.RotateLeft32(d^a, 16)
	c += d
	b = bits.RotateLeft32(b^c, 12)
	a += b
	d = bits.RotateLeft32(d^a, 8)
	c += d
	b = bits.RotateLeft32(b^c, 7)
	return a, b, c, d
}

// chachaBlock runs 20 rounds (10 column/diagonal double rounds) over in and
// serializes in + rounds(in) little-endian.
func chachaBlock(in *[16]uint32, out *[blockSize]byte) {
	x := *in
	for i := 0; i < 10; i++ {
		x[0], x[4], x[8], x[12] = quarterRound(x[0], x[4], x[8], x[12])
		x[1], x[5], x[9], x[13] = quarterRound(x[1], x[5], x[9], x[13])
		x[2], x[6], x[10], x[14] = quarterRound(x[2], x[6], x[10], x[14])
		x[3], x[7], x[11], x[15] = quarterRound(x[3], x[7], x[11], x[15])

		x[0], x[5], x[10], x[15] = quarterRound(x[0], x[5], x[10], x[15])
		x[1], x[6], x[11], x[12] = quarterRound(x[1], x[6], x[11], x[12])
		x[2], x[7], x[8], x[13] = quarterRound(x[2], x[7], x[8], x[13])
		x[3], x[4], x[9], x[14] = quarterRound(x[3], x[4], x[9], x[14])
	}
	for i := range x {
		binary.LittleEndian.PutUint32(out[i*4:], x[i]+in[i])
	}
}
