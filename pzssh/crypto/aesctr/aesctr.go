// Package aesctr implements AES-128 in counter mode as a chunked stream.
//
// The counter block is nonce ‖ counter, with the 64-bit counter big-endian.
// Update only releases whole 16-byte blocks and holds back the remainder, so
// the output of a sequence of Update calls followed by Finalize does not
// depend on how the input was split. Encryption and decryption are the same
// operation.
//
// The caller must never reuse a (key, nonce, counter) triple for two
// different plaintexts.
package aesctr

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	KeySize     = 16
	NonceSize   = 8
	CounterSize = 8
	BlockSize   = aes.BlockSize
)

var ErrInvalidKeySize = errors.New("aesctr: invalid key, nonce or counter size")

// Stream is a single-owner counter-mode state. It is not safe for concurrent
// use.
type Stream struct {
	block    cipher.Block
	nonce    [NonceSize]byte
	counter  uint64
	residual []byte
}

// New returns a stream keyed with key whose first counter block is
// nonce ‖ counter.
func New(key, nonce, counter []byte) (*Stream, error) {
	if len(key) != KeySize || len(nonce) != NonceSize || len(counter) != CounterSize {
		return nil, fmt.Errorf("%w: key %d, nonce %d, counter %d", ErrInvalidKeySize, len(key), len(nonce), len(counter))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		block:    block,
		counter:  binary.BigEndian.Uint64(counter),
		residual: make([]byte, 0, BlockSize),
	}
	copy(s.nonce[:], nonce)
	return s, nil
}

// Counter returns the value that the next keystream block will use.
func (s *Stream) Counter() uint64 { return s.counter }

// Buffered returns the number of input bytes held back for the next call.
func (s *Stream) Buffered() int { return len(s.residual) }

// Update consumes data and returns the transformed bytes of every complete
// block. A trailing partial block is buffered.
func (s *Stream) Update(data []byte) []byte {
	total := len(s.residual) + len(data)
	full := total - total%BlockSize
	out := make([]byte, 0, full)
	if full == 0 {
		s.residual = append(s.residual, data...)
		return out
	}

	in := make([]byte, 0, total)
	in = append(in, s.residual...)
	in = append(in, data...)
	out = s.xor(out, in[:full])
	s.residual = append(s.residual[:0], in[full:]...)
	return out
}

// Finalize consumes data, flushes any buffered bytes, and returns the
// transformed output including a final partial block. The residual is
// cleared; the counter keeps its position so the stream may be reused for
// a following message without repeating keystream.
func (s *Stream) Finalize(data []byte) []byte {
	in := make([]byte, 0, len(s.residual)+len(data))
	in = append(in, s.residual...)
	in = append(in, data...)
	s.residual = s.residual[:0]
	return s.xor(make([]byte, 0, len(in)), in)
}

func (s *Stream) xor(out, in []byte) []byte {
	var ctrBlock, ks [BlockSize]byte
	copy(ctrBlock[:NonceSize], s.nonce[:])
	for len(in) > 0 {
		binary.BigEndian.PutUint64(ctrBlock[NonceSize:], s.counter)
		s.block.Encrypt(ks[:], ctrBlock[:])
		s.counter++ // wraps modulo 2^64
		n := len(in)
		if n > BlockSize {
			n = BlockSize
		}
		for i := 0; i < n; i++ {
			out = append(out, in[i]^ks[i])
		}
		in = in[n:]
	}
	return out
}
