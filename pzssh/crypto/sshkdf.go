package crypto

import (
	"encoding/binary"

	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

// Key letters of RFC 4253 §7.2.
const (
	KeyIVClientToServer     byte = 'A'
	KeyIVServerToClient     byte = 'B'
	KeyCipherClientToServer byte = 'C'
	KeyCipherServerToClient byte = 'D'
	KeyMACClientToServer    byte = 'E'
	KeyMACServerToClient    byte = 'F'
)

// AppendString appends an SSH string: uint32 length ‖ b.
func AppendString(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// AppendMPInt appends an unsigned big-endian magnitude as an SSH mpint:
// leading zeros stripped, one 0x00 prepended when the top bit is set.
func AppendMPInt(dst, magnitude []byte) []byte {
	for len(magnitude) > 0 && magnitude[0] == 0 {
		magnitude = magnitude[1:]
	}
	if len(magnitude) > 0 && magnitude[0]&0x80 != 0 {
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(magnitude)+1))
		dst = append(dst, 0)
		return append(dst, magnitude...)
	}
	return AppendString(dst, magnitude)
}

// ExchangeHash accumulates the handshake transcript that both hosts sign.
type ExchangeHash struct {
	d *sha2.Digest
}

// NewExchangeHash starts an empty transcript.
func NewExchangeHash() *ExchangeHash {
	return &ExchangeHash{d: sha2.New()}
}

// WriteString adds a length-prefixed byte string.
func (h *ExchangeHash) WriteString(b []byte) {
	h.d.Write(AppendString(nil, b))
}

// WriteMPInt adds an unsigned big-endian integer in mpint form.
func (h *ExchangeHash) WriteMPInt(magnitude []byte) {
	h.d.Write(AppendMPInt(nil, magnitude))
}

// Sum returns H. The transcript may continue to be written afterwards.
func (h *ExchangeHash) Sum() []byte {
	return h.d.Sum(nil)
}

// DeriveSSHKey derives size bytes of key material for letter:
//
//	K1 = SHA-256(mpint(K) ‖ H ‖ letter ‖ sessionID)
//	Kn = SHA-256(mpint(K) ‖ H ‖ K1 ‖ … ‖ Kn-1)
//
// sharedSecret is the raw big-endian K.
func DeriveSSHKey(sharedSecret, exchangeHash []byte, letter byte, sessionID []byte, size int) []byte {
	prefix := AppendMPInt(nil, sharedSecret)
	prefix = append(prefix, exchangeHash...)

	d := sha2.New()
	d.Write(prefix)
	d.Write([]byte{letter})
	d.Write(sessionID)
	out := d.Sum(nil)

	for len(out) < size {
		d.Reset()
		d.Write(prefix)
		d.Write(out)
		out = d.Sum(out)
	}
	return out[:size]
}
