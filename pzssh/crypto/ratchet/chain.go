package ratchet

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/TheusHen/pzssh/pzssh/crypto/chacha20poly1305"
	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

var (
	ErrRatchetExhausted  = errors.New("ratchet: maximum generation reached")
	ErrInvalidGeneration = errors.New("ratchet: invalid generation number")
	ErrInvalidKeySize    = errors.New("ratchet: initial key must be 32 bytes")
	ErrMessageTooShort   = errors.New("ratchet: message too short")
)

const (
	// MaxGeneration is the maximum number of ratchet steps before re-keying is required.
	MaxGeneration = 1 << 32

	// DefaultMaxSkip bounds how far ahead of the receiver a message may be.
	DefaultMaxSkip = 1000
)

// deriveKeys derives (nextChainKey, messageKey) from a chain key:
//
//	messageKey   = SHA-256(chainKey ‖ 0x01)
//	nextChainKey = SHA-256(chainKey ‖ 0x02)
func deriveKeys(chainKey [32]byte) ([32]byte, [32]byte) {
	h := sha2.New()
	h.Write(chainKey[:])
	h.Write([]byte{0x01})
	var messageKey [32]byte
	h.Sum(messageKey[:0])

	h.Reset()
	h.Write(chainKey[:])
	h.Write([]byte{0x02})
	var nextChainKey [32]byte
	h.Sum(nextChainKey[:0])

	return nextChainKey, messageKey
}

// Chain is the sending half of a symmetric key ratchet.
// Each step derives a new chain key and a single-use message key.
type Chain struct {
	mu         sync.Mutex
	chainKey   [32]byte
	generation uint64
}

// NewChain creates a new ratchet chain from an initial 32-byte key.
func NewChain(initialKey []byte) (*Chain, error) {
	if len(initialKey) != 32 {
		return nil, ErrInvalidKeySize
	}
	c := &Chain{}
	copy(c.chainKey[:], initialKey)
	return c, nil
}

// Step advances the ratchet and returns the message key for the current
// generation. The chain key is replaced immediately.
func (c *Chain) Step() ([32]byte, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation >= MaxGeneration {
		return [32]byte{}, 0, ErrRatchetExhausted
	}

	nextChain, msgKey := deriveKeys(c.chainKey)
	gen := c.generation
	c.chainKey = nextChain
	c.generation++
	return msgKey, gen, nil
}

// Generation returns the current generation number.
func (c *Chain) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Export exports the current chain state for persistence/resumption.
// WARNING: Handle with extreme care; this contains keying material.
func (c *Chain) Export() (chainKey [32]byte, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainKey, c.generation
}

// EncryptedMessage represents a ratcheted encrypted message.
type EncryptedMessage struct {
	Generation uint64
	Ciphertext []byte
}

// Seal encrypts plaintext, advances the ratchet, and returns the encrypted message.
func (c *Chain) Seal(plaintext, ad []byte) (EncryptedMessage, error) {
	msgKey, gen, err := c.Step()
	if err != nil {
		return EncryptedMessage{}, err
	}
	ct, err := sealMessage(msgKey, gen, plaintext, ad)
	if err != nil {
		return EncryptedMessage{}, err
	}
	return EncryptedMessage{Generation: gen, Ciphertext: ct}, nil
}

// Receiver manages decryption with out-of-order tolerance.
type Receiver struct {
	mu         sync.Mutex
	skipped    map[uint64][32]byte // message keys of skipped generations
	current    [32]byte
	currentGen uint64
	maxSkip    int
}

// NewReceiver creates a receiver ratchet from the initial key.
func NewReceiver(initialKey []byte, maxSkip int) (*Receiver, error) {
	if len(initialKey) != 32 {
		return nil, ErrInvalidKeySize
	}
	r := &Receiver{
		skipped: make(map[uint64][32]byte),
		maxSkip: maxSkip,
	}
	copy(r.current[:], initialKey)
	return r, nil
}

// Open decrypts an encrypted message, handling out-of-order delivery.
// State only advances when the message authenticates.
func (r *Receiver) Open(msg EncryptedMessage, ad []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := msg.Generation

	if msgKey, ok := r.skipped[gen]; ok {
		pt, err := openMessage(msgKey, gen, msg.Ciphertext, ad)
		if err != nil {
			return nil, err
		}
		delete(r.skipped, gen)
		return pt, nil
	}

	if gen < r.currentGen {
		return nil, ErrInvalidGeneration
	}
	if gen-r.currentGen > uint64(r.maxSkip) || len(r.skipped)+int(gen-r.currentGen) > r.maxSkip {
		return nil, ErrInvalidGeneration
	}

	chainKey := r.current
	skipped := make(map[uint64][32]byte, gen-r.currentGen)
	for i := r.currentGen; i < gen; i++ {
		next, mk := deriveKeys(chainKey)
		skipped[i] = mk
		chainKey = next
	}
	nextChain, msgKey := deriveKeys(chainKey)

	pt, err := openMessage(msgKey, gen, msg.Ciphertext, ad)
	if err != nil {
		return nil, err
	}
	for g, mk := range skipped {
		r.skipped[g] = mk
	}
	r.current = nextChain
	r.currentGen = gen + 1
	return pt, nil
}

// Encode serializes an EncryptedMessage for wire transmission.
func (m EncryptedMessage) Encode() []byte {
	out := make([]byte, 8+len(m.Ciphertext))
	binary.BigEndian.PutUint64(out[:8], m.Generation)
	copy(out[8:], m.Ciphertext)
	return out
}

// DecodeEncryptedMessage deserializes an EncryptedMessage.
func DecodeEncryptedMessage(data []byte) (EncryptedMessage, error) {
	if len(data) < 8 {
		return EncryptedMessage{}, ErrMessageTooShort
	}
	return EncryptedMessage{
		Generation: binary.BigEndian.Uint64(data[:8]),
		Ciphertext: data[8:],
	}, nil
}

// sealMessage encrypts under a single-use message key. The nonce is the
// generation; the associated data is authenticated but not carried.
func sealMessage(msgKey [32]byte, gen uint64, plaintext, ad []byte) ([]byte, error) {
	c, err := chacha20poly1305.New(msgKey[:])
	if err != nil {
		return nil, err
	}
	sealed, err := c.Seal(generationNonce(gen), plaintext, ad)
	if err != nil {
		return nil, err
	}
	return sealed[len(ad):], nil
}

func openMessage(msgKey [32]byte, gen uint64, ct, ad []byte) ([]byte, error) {
	c, err := chacha20poly1305.New(msgKey[:])
	if err != nil {
		return nil, err
	}
	d, err := c.NewDecryptor(generationNonce(gen))
	if err != nil {
		return nil, err
	}
	if err := d.Update(ad); err != nil {
		return nil, err
	}
	pt, _, err := d.Finalize(ct)
	return pt, err
}

func generationNonce(gen uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], gen)
	return nonce
}
