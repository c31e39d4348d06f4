package crypto

import (
	"encoding/binary"
	"errors"
	"sync/atomic"

	"github.com/TheusHen/pzssh/pzssh/crypto/chacha20poly1305"
	"github.com/TheusHen/pzssh/pzssh/crypto/random"
)

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	ErrDecryptionFailed   = errors.New("crypto: decryption failed")
)

// AEAD wraps ChaCha20-Poly1305 with automatic nonce management.
// It uses a 64-bit counter + 32-bit random prefix for the 96-bit nonce.
// This allows ~2^64 messages per key with no nonce reuse.
//
// Additional data is authenticated but not carried in the record; the
// receiver must supply the same bytes to Open.
type AEAD struct {
	cipher *chacha20poly1305.Cipher
	prefix [4]byte
	seq    atomic.Uint64
}

// NewAEAD creates a new AEAD cipher from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	c, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	a := &AEAD{cipher: c}
	prefix, err := random.Bytes(nil, len(a.prefix))
	if err != nil {
		return nil, err
	}
	copy(a.prefix[:], prefix)
	return a, nil
}

func (a *AEAD) nextNonce() []byte {
	seq := a.seq.Add(1)
	nonce := make([]byte, chacha20poly1305.NonceSize) // 12 bytes
	copy(nonce[:4], a.prefix[:])
	binary.BigEndian.PutUint64(nonce[4:], seq)
	return nonce
}

// Seal encrypts and authenticates plaintext.
// Returns: nonce (12 bytes) || ciphertext || le64 lengths (16 bytes) || tag (16 bytes)
func (a *AEAD) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := a.nextNonce()
	sealed, err := a.cipher.Seal(nonce, plaintext, additionalData)
	if err != nil {
		return nil, err
	}
	body := sealed[len(additionalData):]
	out := make([]byte, len(nonce)+len(body))
	copy(out, nonce)
	copy(out[len(nonce):], body)
	return out, nil
}

// Open decrypts and verifies a record produced by Seal.
func (a *AEAD) Open(record, additionalData []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSize
	if len(record) < nonceSize+a.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	d, err := a.cipher.NewDecryptor(record[:nonceSize])
	if err != nil {
		return nil, err
	}
	if err := d.Update(additionalData); err != nil {
		return nil, err
	}
	plaintext, _, err := d.Finalize(record[nonceSize:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Overhead returns the trailer overhead (lengths and tag).
func (a *AEAD) Overhead() int { return chacha20poly1305.TrailerSize }

// NonceSize returns the nonce size.
func (a *AEAD) NonceSize() int { return chacha20poly1305.NonceSize }
