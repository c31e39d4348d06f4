package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"
)

var (
	testPacketKey = bytes.Repeat([]byte{0x11}, PacketKeySize)
	testPacketIV  = bytes.Repeat([]byte{0x22}, PacketIVSize)
	testMACKey    = bytes.Repeat([]byte{0x33}, 32)
)

func newPacketPair(t *testing.T, buf *bytes.Buffer) (*PacketWriter, *PacketReader) {
	t.Helper()
	pw, err := NewPacketWriter(buf, testPacketKey, testPacketIV, testMACKey, nil)
	if err != nil {
		t.Fatalf("NewPacketWriter: %v", err)
	}
	pr, err := NewPacketReader(buf, testPacketKey, testPacketIV, testMACKey)
	if err != nil {
		t.Fatalf("NewPacketReader: %v", err)
	}
	return pw, pr
}

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	pw, pr := newPacketPair(t, &buf)

	payloads := [][]byte{{}, []byte("x"), bytes.Repeat([]byte("a"), 11), bytes.Repeat([]byte("b"), 12), make([]byte, 1000), make([]byte, MaxPacketPayload)}
	for _, p := range payloads {
		if err := pw.WritePacket(p); err != nil {
			t.Fatalf("WritePacket(%d): %v", len(p), err)
		}
	}
	for _, p := range payloads {
		got, err := pr.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket(%d): %v", len(p), err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("payload of %d bytes mismatch", len(p))
		}
	}
}

func TestPacketLayoutMatchesStdlib(t *testing.T) {
	var buf bytes.Buffer
	pw, _ := newPacketPair(t, &buf)
	payload := []byte("hello, packet")
	if err := pw.WritePacket(payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	wire := buf.Bytes()
	enc, mac := wire[:len(wire)-PacketMACSize], wire[len(wire)-PacketMACSize:]
	if len(enc)%16 != 0 {
		t.Fatalf("encrypted length %d is not block aligned", len(enc))
	}

	block, _ := aes.NewCipher(testPacketKey)
	plain := make([]byte, len(enc))
	cipher.NewCTR(block, testPacketIV).XORKeyStream(plain, enc)

	length := binary.BigEndian.Uint32(plain)
	pad := int(plain[4])
	if int(length)+4 != len(plain) {
		t.Fatalf("packet_length = %d, packet is %d bytes", length, len(plain))
	}
	if pad < 4 {
		t.Fatalf("padding_length = %d", pad)
	}
	if !bytes.Equal(plain[5:len(plain)-pad], payload) {
		t.Fatalf("payload mismatch")
	}

	m := hmac.New(sha256.New, testMACKey)
	m.Write([]byte{0, 0, 0, 0})
	m.Write(plain)
	if !hmac.Equal(m.Sum(nil), mac) {
		t.Fatalf("MAC does not match HMAC-SHA256(seq ‖ packet)")
	}
}

func TestPaddingLength(t *testing.T) {
	for n := 0; n < 64; n++ {
		pad, err := paddingLength(nil, n)
		if err != nil {
			t.Fatalf("paddingLength: %v", err)
		}
		if pad < minPadding || pad > maxPadding {
			t.Fatalf("n=%d: pad %d out of range", n, pad)
		}
		if (n+5+pad)%16 != 0 {
			t.Fatalf("n=%d: packet not aligned with pad %d", n, pad)
		}
	}
}

func TestPacketTamper(t *testing.T) {
	var buf bytes.Buffer
	pw, _ := newPacketPair(t, &buf)
	if err := pw.WritePacket([]byte("payload payload payload")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	wire := append([]byte{}, buf.Bytes()...)

	// Flipping a bit after the length field must trip the MAC.
	for _, i := range []int{5, 20, len(wire) - 1} {
		bad := append([]byte{}, wire...)
		bad[i] ^= 0x01
		pr, _ := NewPacketReader(bytes.NewReader(bad), testPacketKey, testPacketIV, testMACKey)
		if _, err := pr.ReadPacket(); !errors.Is(err, ErrPacketMAC) {
			t.Fatalf("byte %d: expected ErrPacketMAC, got %v", i, err)
		}
	}
}

func TestPacketReplayRejected(t *testing.T) {
	var buf bytes.Buffer
	pw, _ := newPacketPair(t, &buf)
	_ = pw.WritePacket([]byte("first"))
	first := append([]byte{}, buf.Bytes()...)

	// The same bytes again are stale for both the keystream and the sequence.
	pr, _ := NewPacketReader(bytes.NewReader(append(append([]byte{}, first...), first...)), testPacketKey, testPacketIV, testMACKey)
	if _, err := pr.ReadPacket(); err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if _, err := pr.ReadPacket(); err == nil {
		t.Fatalf("expected replayed packet to fail")
	}
}

func TestPacketErrors(t *testing.T) {
	var buf bytes.Buffer
	pw, _ := newPacketPair(t, &buf)
	if err := pw.WritePacket(make([]byte, MaxPacketPayload+1)); !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}
	if _, err := NewPacketWriter(&buf, testPacketKey[:8], testPacketIV, testMACKey, nil); !errors.Is(err, ErrPacketKeyLength) {
		t.Fatalf("expected ErrPacketKeyLength, got %v", err)
	}
	if _, err := NewPacketReader(&buf, testPacketKey, testPacketIV[:8], testMACKey); !errors.Is(err, ErrPacketKeyLength) {
		t.Fatalf("expected ErrPacketKeyLength, got %v", err)
	}

	// A length that is not block aligned is refused before reading further.
	block, _ := aes.NewCipher(testPacketKey)
	plain := make([]byte, 16)
	binary.BigEndian.PutUint32(plain, 17)
	enc := make([]byte, 16)
	cipher.NewCTR(block, testPacketIV).XORKeyStream(enc, plain)
	pr, _ := NewPacketReader(bytes.NewReader(enc), testPacketKey, testPacketIV, testMACKey)
	if _, err := pr.ReadPacket(); !errors.Is(err, ErrPacketLength) {
		t.Fatalf("expected ErrPacketLength, got %v", err)
	}
}
