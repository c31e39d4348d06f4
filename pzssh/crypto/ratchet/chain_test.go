package ratchet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/TheusHen/pzssh/pzssh/crypto/chacha20poly1305"
)

func TestChainRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	sender, err := NewChain(key)
	if err != nil {
		t.Fatalf("NewChain sender: %v", err)
	}
	receiver, err := NewReceiver(key, 100)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	messages := [][]byte{
		[]byte("message 0"),
		[]byte("message 1"),
		[]byte("message 2"),
	}

	var encrypted []EncryptedMessage
	for _, m := range messages {
		em, err := sender.Seal(m, []byte("ad"))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		encrypted = append(encrypted, em)
	}

	for i, em := range encrypted {
		pt, err := receiver.Open(em, []byte("ad"))
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		if !bytes.Equal(pt, messages[i]) {
			t.Fatalf("message %d mismatch", i)
		}
	}
	if sender.Generation() != 3 {
		t.Fatalf("generation = %d, want 3", sender.Generation())
	}
}

func TestChainOutOfOrder(t *testing.T) {
	key := make([]byte, 32)
	sender, _ := NewChain(key)
	receiver, _ := NewReceiver(key, 100)

	em0, _ := sender.Seal([]byte("m0"), nil)
	em1, _ := sender.Seal([]byte("m1"), nil)
	em2, _ := sender.Seal([]byte("m2"), nil)

	// Receive out of order: 2, 0, 1
	pt2, err := receiver.Open(em2, nil)
	if err != nil {
		t.Fatalf("Open em2: %v", err)
	}
	if string(pt2) != "m2" {
		t.Fatalf("em2 mismatch")
	}

	pt0, err := receiver.Open(em0, nil)
	if err != nil {
		t.Fatalf("Open em0: %v", err)
	}
	if string(pt0) != "m0" {
		t.Fatalf("em0 mismatch")
	}

	pt1, err := receiver.Open(em1, nil)
	if err != nil {
		t.Fatalf("Open em1: %v", err)
	}
	if string(pt1) != "m1" {
		t.Fatalf("em1 mismatch")
	}

	// Replays are rejected once the key is consumed.
	if _, err := receiver.Open(em0, nil); !errors.Is(err, ErrInvalidGeneration) {
		t.Fatalf("replay: expected ErrInvalidGeneration, got %v", err)
	}
}

func TestReceiverRejectsTamperWithoutAdvancing(t *testing.T) {
	key := make([]byte, 32)
	sender, _ := NewChain(key)
	receiver, _ := NewReceiver(key, 10)

	em, _ := sender.Seal([]byte("payload"), []byte("ad"))

	bad := EncryptedMessage{Generation: em.Generation, Ciphertext: append([]byte{}, em.Ciphertext...)}
	bad.Ciphertext[0] ^= 1
	if _, err := receiver.Open(bad, []byte("ad")); !errors.Is(err, chacha20poly1305.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if _, err := receiver.Open(em, []byte("other ad")); !errors.Is(err, chacha20poly1305.ErrOpen) {
		t.Fatalf("wrong ad: expected ErrOpen, got %v", err)
	}

	pt, err := receiver.Open(em, []byte("ad"))
	if err != nil {
		t.Fatalf("Open after failures: %v", err)
	}
	if string(pt) != "payload" {
		t.Fatalf("payload mismatch")
	}
}

func TestReceiverSkipLimit(t *testing.T) {
	key := make([]byte, 32)
	sender, _ := NewChain(key)
	receiver, _ := NewReceiver(key, 2)

	var last EncryptedMessage
	for i := 0; i < 4; i++ {
		last, _ = sender.Seal([]byte("x"), nil)
	}
	if _, err := receiver.Open(last, nil); !errors.Is(err, ErrInvalidGeneration) {
		t.Fatalf("expected ErrInvalidGeneration for skip of 3, got %v", err)
	}
}

func TestEncodeDecodeMessage(t *testing.T) {
	em := EncryptedMessage{Generation: 42, Ciphertext: []byte("hello")}
	encoded := em.Encode()
	decoded, err := DecodeEncryptedMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeEncryptedMessage: %v", err)
	}
	if decoded.Generation != em.Generation {
		t.Fatalf("generation mismatch")
	}
	if !bytes.Equal(decoded.Ciphertext, em.Ciphertext) {
		t.Fatalf("ciphertext mismatch")
	}
	if _, err := DecodeEncryptedMessage([]byte{1, 2}); !errors.Is(err, ErrMessageTooShort) {
		t.Fatalf("expected ErrMessageTooShort, got %v", err)
	}
}

func TestNewChainKeySize(t *testing.T) {
	if _, err := NewChain(make([]byte, 16)); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := NewReceiver(make([]byte, 31), 1); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func BenchmarkChainSeal(b *testing.B) {
	key := make([]byte, 32)
	chain, _ := NewChain(key)
	msg := make([]byte, 1024)
	b.SetBytes(int64(len(msg)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = chain.Seal(msg, nil)
	}
}
