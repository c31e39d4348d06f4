// Package chacha20poly1305 implements the ChaCha20-Poly1305 AEAD with
// incremental encryption and fully buffered, verify-then-decrypt decryption.
//
// The wire form of a sealed message is
//
//	aad ‖ ciphertext ‖ le64(len(aad)) ‖ le64(len(ciphertext)) ‖ tag
//
// The tag is Poly1305 over aad and ciphertext each zero-padded to 16 bytes,
// followed by the two lengths, as in RFC 8439. The padding is part of the
// authenticated input only and never appears on the wire.
//
// Encryptor and Decryptor are distinct types, so a context can only ever be
// used in one direction. Both are single-use: after Finalize they return
// ErrFinalized.
package chacha20poly1305

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	KeySize     = 32
	NonceSize   = 12
	TagSize     = tagSize
	TrailerSize = 16 + tagSize // two lengths and the tag
	blockSize   = 64
)

var (
	ErrInvalidKeySize   = errors.New("chacha20poly1305: invalid key size")
	ErrInvalidNonceSize = errors.New("chacha20poly1305: invalid nonce size")
	ErrOpen             = errors.New("chacha20poly1305: message authentication failed")
	ErrFinalized        = errors.New("chacha20poly1305: context already finalized")
	ErrCounterOverflow  = errors.New("chacha20poly1305: block counter exhausted")
)

// Cipher holds a key. It is immutable and safe for concurrent use; the
// per-message contexts it creates are not.
type Cipher struct {
	key [KeySize]byte
}

// New returns a Cipher for a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, len(key))
	}
	c := new(Cipher)
	copy(c.key[:], key)
	return c, nil
}

// aeadState is the state shared by both directions: the data keystream
// starting at counter 1 and the one-time MAC key state at counter 0.
type aeadState struct {
	data  chachaState
	mac   chachaState
	spent bool
}

func (c *Cipher) newAEADState(nonce []byte) (aeadState, error) {
	if len(nonce) != NonceSize {
		return aeadState{}, fmt.Errorf("%w: %d", ErrInvalidNonceSize, len(nonce))
	}
	return aeadState{
		data: newState(&c.key, 1, nonce),
		mac:  newState(&c.key, 0, nonce),
	}, nil
}

func (ctx *aeadState) macKey() ([]byte, error) {
	var block [blockSize]byte
	if err := ctx.mac.next(&block); err != nil {
		return nil, err
	}
	return block[:32], nil
}

// Encryptor encrypts a message incrementally.
type Encryptor struct {
	ctx      aeadState
	residual []byte
	ct       []byte
}

// NewEncryptor starts a message under nonce. A (key, nonce) pair must never
// seal two different messages.
func (c *Cipher) NewEncryptor(nonce []byte) (*Encryptor, error) {
	ctx, err := c.newAEADState(nonce)
	if err != nil {
		return nil, err
	}
	return &Encryptor{ctx: ctx, residual: make([]byte, 0, blockSize)}, nil
}

// Update encrypts every complete 64-byte block of residual ‖ data and keeps
// the remainder for the next call.
func (e *Encryptor) Update(data []byte) error {
	if e.ctx.spent {
		return ErrFinalized
	}
	total := len(e.residual) + len(data)
	full := total - total%blockSize
	if full == 0 {
		e.residual = append(e.residual, data...)
		return nil
	}
	in := make([]byte, 0, total)
	in = append(in, e.residual...)
	in = append(in, data...)

	ct, err := e.ctx.data.xor(e.ct, in[:full])
	if err != nil {
		return err
	}
	e.ct = ct
	e.residual = append(e.residual[:0], in[full:]...)
	return nil
}

// Write implements io.Writer on top of Update.
func (e *Encryptor) Write(p []byte) (int, error) {
	if err := e.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Finalize encrypts the buffered bytes and data, authenticates aad and the
// ciphertext, and returns the sealed message. The Encryptor is spent
// afterwards.
func (e *Encryptor) Finalize(data, aad []byte) ([]byte, error) {
	if e.ctx.spent {
		return nil, ErrFinalized
	}
	e.ctx.spent = true

	in := make([]byte, 0, len(e.residual)+len(data))
	in = append(in, e.residual...)
	in = append(in, data...)
	e.residual = nil

	ct, err := e.ctx.data.xor(e.ct, in)
	if err != nil {
		return nil, err
	}
	e.ct = nil

	key, err := e.ctx.macKey()
	if err != nil {
		return nil, err
	}
	tag := poly1305Sum(key, macInput(aad, ct))

	out := make([]byte, 0, len(aad)+len(ct)+TrailerSize)
	out = append(out, aad...)
	out = append(out, ct...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(aad)))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(ct)))
	return append(out, tag[:]...), nil
}

// Decryptor accumulates a sealed message and opens it in Finalize. No
// plaintext is produced before the tag over the complete message has been
// verified.
type Decryptor struct {
	ctx aeadState
	buf []byte
}

// NewDecryptor starts opening a message sealed under nonce.
func (c *Cipher) NewDecryptor(nonce []byte) (*Decryptor, error) {
	ctx, err := c.newAEADState(nonce)
	if err != nil {
		return nil, err
	}
	return &Decryptor{ctx: ctx}, nil
}

// Update buffers data.
func (d *Decryptor) Update(data []byte) error {
	if d.ctx.spent {
		return ErrFinalized
	}
	d.buf = append(d.buf, data...)
	return nil
}

// Write implements io.Writer on top of Update.
func (d *Decryptor) Write(p []byte) (int, error) {
	if err := d.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Finalize appends data, verifies the tag and returns the plaintext and the
// additional data. Any malformed trailer or tag mismatch returns ErrOpen
// and no output. The Decryptor is spent afterwards.
func (d *Decryptor) Finalize(data []byte) (plaintext, aad []byte, err error) {
	if d.ctx.spent {
		return nil, nil, ErrFinalized
	}
	d.ctx.spent = true
	msg := append(d.buf, data...)
	d.buf = nil

	if len(msg) < TrailerSize {
		return nil, nil, ErrOpen
	}
	body := uint64(len(msg) - TrailerSize)
	aadLen := binary.LittleEndian.Uint64(msg[len(msg)-TrailerSize:])
	ctLen := binary.LittleEndian.Uint64(msg[len(msg)-TrailerSize+8:])
	if aadLen > body || ctLen != body-aadLen {
		return nil, nil, ErrOpen
	}
	aadPart := msg[:aadLen]
	ctPart := msg[aadLen:body]

	key, err := d.ctx.macKey()
	if err != nil {
		return nil, nil, err
	}
	want := poly1305Sum(key, macInput(aadPart, ctPart))
	if subtle.ConstantTimeCompare(want[:], msg[len(msg)-tagSize:]) != 1 {
		return nil, nil, ErrOpen
	}

	pt, err := d.ctx.data.xor(make([]byte, 0, len(ctPart)), ctPart)
	if err != nil {
		return nil, nil, err
	}
	return pt, append([]byte{}, aadPart...), nil
}

// Seal encrypts plaintext in one call.
func (c *Cipher) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	e, err := c.NewEncryptor(nonce)
	if err != nil {
		return nil, err
	}
	return e.Finalize(plaintext, aad)
}

// Open verifies and decrypts a sealed message in one call.
func (c *Cipher) Open(nonce, sealed []byte) (plaintext, aad []byte, err error) {
	d, err := c.NewDecryptor(nonce)
	if err != nil {
		return nil, nil, err
	}
	return d.Finalize(sealed)
}

// macInput builds aad ‖ pad16 ‖ ct ‖ pad16 ‖ le64(len aad) ‖ le64(len ct).
func macInput(aad, ct []byte) []byte {
	out := make([]byte, 0, padded(len(aad))+padded(len(ct))+16)
	out = append(out, aad...)
	out = append(out, make([]byte, padded(len(aad))-len(aad))...)
	out = append(out, ct...)
	out = append(out, make([]byte, padded(len(ct))-len(ct))...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(aad)))
	return binary.LittleEndian.AppendUint64(out, uint64(len(ct)))
}

func padded(n int) int { return (n + 15) &^ 15 }
