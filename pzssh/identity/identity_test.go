package identity

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestPeerIDDerivationStable(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	id1 := kp.PeerID()
	id2 := PeerIDFromPublicKey(kp.PublicKey)
	if id1 != id2 {
		t.Fatalf("PeerID mismatch")
	}

	parsed, err := ParsePeerIDHex(id1.String())
	if err != nil {
		t.Fatalf("ParsePeerIDHex: %v", err)
	}
	if parsed != id1 {
		t.Fatalf("parsed PeerID mismatch")
	}
	if _, err := ParsePeerIDHex("abcd"); err == nil {
		t.Fatalf("expected error for short PeerID")
	}
}

func TestSignVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := []byte("hello")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(kp.PublicKey, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
	if Verify(kp.PublicKey, []byte("hellp"), sig) {
		t.Fatalf("expected signature to fail")
	}
	if Verify([]byte{0x04, 1, 2}, msg, sig) {
		t.Fatalf("expected malformed key to fail")
	}
}

func TestNewKeyPairMatchesPublic(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	loaded, err := NewKeyPair(kp.PrivateKey.Bytes(), kp.PublicKey)
	if err != nil {
		t.Fatalf("NewKeyPair: %v", err)
	}
	if !bytes.Equal(loaded.PublicKey, kp.PublicKey) {
		t.Fatalf("public key mismatch")
	}

	other, _ := GenerateKeyPair()
	if _, err := NewKeyPair(kp.PrivateKey.Bytes(), other.PublicKey); err == nil {
		t.Fatalf("expected mismatched public key to fail")
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "id_ecdsa")
	pub := filepath.Join(dir, "id_ecdsa.pub")

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if err := kp.Save(priv, pub); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadKeyPair(priv, pub)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if loaded.PeerID() != kp.PeerID() {
		t.Fatalf("PeerID changed across save/load")
	}
	if err := ValidatePublicKey(loaded.PublicKey); err != nil {
		t.Fatalf("ValidatePublicKey: %v", err)
	}
}
