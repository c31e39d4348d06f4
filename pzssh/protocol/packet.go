package protocol

import (
	"crypto/hmac"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/TheusHen/pzssh/pzssh/crypto/aesctr"
	"github.com/TheusHen/pzssh/pzssh/crypto/random"
	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

// Binary packets follow RFC 4253 §6:
//
//	uint32 packet_length ‖ byte padding_length ‖ payload ‖ padding ‖ mac
//
// packet_length covers padding_length, payload and padding. Everything
// before mac is encrypted with AES-128-CTR and is a multiple of 16 bytes.
// mac is HMAC-SHA256(mac key, uint32 seq ‖ unencrypted packet).

const (
	PacketKeySize = aesctr.KeySize
	PacketIVSize  = aesctr.NonceSize + aesctr.CounterSize
	PacketMACSize = sha2.Size

	// MaxPacketPayload bounds the payload of a single packet.
	MaxPacketPayload = 32768

	packetBlock   = aesctr.BlockSize
	minPadding    = 4
	maxPadding    = 255
	maxPacketSize = MaxPacketPayload + 1 + maxPadding
)

var (
	ErrPacketTooLarge  = errors.New("protocol: packet too large")
	ErrPacketLength    = errors.New("protocol: invalid packet length")
	ErrPacketPadding   = errors.New("protocol: invalid packet padding")
	ErrPacketMAC       = errors.New("protocol: packet MAC mismatch")
	ErrPacketKeyLength = errors.New("protocol: invalid packet key material")
)

// packetState is one direction of the binary packet layer.
type packetState struct {
	stream *aesctr.Stream
	mac    hash.Hash
	seq    uint32
}

func newPacketState(key, iv, macKey []byte) (packetState, error) {
	if len(key) != PacketKeySize || len(iv) != PacketIVSize || len(macKey) == 0 {
		return packetState{}, ErrPacketKeyLength
	}
	s, err := aesctr.New(key, iv[:aesctr.NonceSize], iv[aesctr.NonceSize:])
	if err != nil {
		return packetState{}, err
	}
	return packetState{stream: s, mac: hmac.New(sha2.NewHash, macKey)}, nil
}

func (p *packetState) sum(packet []byte) []byte {
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], p.seq)
	p.mac.Reset()
	p.mac.Write(seq[:])
	p.mac.Write(packet)
	return p.mac.Sum(nil)
}

// PacketWriter seals payloads into binary packets.
type PacketWriter struct {
	mu    sync.Mutex
	w     io.Writer
	rand  io.Reader
	state packetState
}

// NewPacketWriter returns a writer keyed with a 16-byte AES key, a 16-byte
// IV (nonce ‖ initial counter) and an HMAC key. rand supplies padding; nil
// means crypto/rand.
func NewPacketWriter(w io.Writer, key, iv, macKey []byte, rand io.Reader) (*PacketWriter, error) {
	st, err := newPacketState(key, iv, macKey)
	if err != nil {
		return nil, err
	}
	return &PacketWriter{w: w, rand: rand, state: st}, nil
}

// paddingLength returns the padding for a payload of n bytes: at least 4,
// aligning the packet to the block size, plus a random number of extra
// blocks while staying within one length byte.
func paddingLength(r io.Reader, n int) (int, error) {
	pad := packetBlock - (n+5)%packetBlock
	if pad < minPadding {
		pad += packetBlock
	}
	extra, err := random.Int(r, 0, (maxPadding-pad)/packetBlock)
	if err != nil {
		return 0, err
	}
	return pad + extra*packetBlock, nil
}

// WritePacket encrypts payload and writes the packet and its MAC.
func (pw *PacketWriter) WritePacket(payload []byte) error {
	if len(payload) > MaxPacketPayload {
		return fmt.Errorf("%w: %d", ErrPacketTooLarge, len(payload))
	}
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pad, err := paddingLength(pw.rand, len(payload))
	if err != nil {
		return err
	}
	padding, err := random.Bytes(pw.rand, pad)
	if err != nil {
		return err
	}

	packet := make([]byte, 5, 5+len(payload)+pad)
	binary.BigEndian.PutUint32(packet, uint32(len(payload)+pad+1))
	packet[4] = byte(pad)
	packet = append(packet, payload...)
	packet = append(packet, padding...)

	mac := pw.state.sum(packet)
	out := pw.state.stream.Update(packet)
	out = append(out, mac...)
	pw.state.seq++

	_, err = pw.w.Write(out)
	return err
}

// PacketReader reads and authenticates binary packets.
type PacketReader struct {
	mu    sync.Mutex
	r     io.Reader
	state packetState
}

func NewPacketReader(r io.Reader, key, iv, macKey []byte) (*PacketReader, error) {
	st, err := newPacketState(key, iv, macKey)
	if err != nil {
		return nil, err
	}
	return &PacketReader{r: r, state: st}, nil
}

// ReadPacket reads one packet and returns its payload. The first block is
// decrypted to learn the length before the rest is read.
func (pr *PacketReader) ReadPacket() ([]byte, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	first := make([]byte, packetBlock)
	if _, err := io.ReadFull(pr.r, first); err != nil {
		return nil, err
	}
	packet := pr.state.stream.Update(first)

	length := int(binary.BigEndian.Uint32(packet))
	if length > maxPacketSize {
		return nil, fmt.Errorf("%w: %d", ErrPacketTooLarge, length)
	}
	if length+4 < packetBlock || (length+4)%packetBlock != 0 {
		return nil, fmt.Errorf("%w: %d", ErrPacketLength, length)
	}

	rest := make([]byte, length+4-packetBlock+PacketMACSize)
	if _, err := io.ReadFull(pr.r, rest); err != nil {
		return nil, err
	}
	body, mac := rest[:len(rest)-PacketMACSize], rest[len(rest)-PacketMACSize:]
	packet = append(packet, pr.state.stream.Update(body)...)

	if !hmac.Equal(pr.state.sum(packet), mac) {
		return nil, ErrPacketMAC
	}
	pr.state.seq++

	pad := int(packet[4])
	if pad < minPadding || pad > length-1 {
		return nil, fmt.Errorf("%w: %d", ErrPacketPadding, pad)
	}
	return append([]byte(nil), packet[5:length+4-pad]...), nil
}
