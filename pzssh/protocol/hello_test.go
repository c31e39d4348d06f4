package protocol

import (
	"errors"
	"testing"

	"github.com/TheusHen/pzssh/pzssh/compress"
	"github.com/TheusHen/pzssh/pzssh/crypto"
	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/identity"
)

func newTestHello(t *testing.T) (identity.KeyPair, Hello) {
	t.Helper()
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	eph, err := crypto.GenerateECDH(ec.P256())
	if err != nil {
		t.Fatalf("GenerateECDH: %v", err)
	}
	hello, err := NewHello(kp, eph.PublicKey,
		[]string{CipherChaCha20Poly1305, CipherAES128CTR},
		[]string{compress.MethodLZ4, compress.MethodNone},
		map[string]string{"version": "1.0"})
	if err != nil {
		t.Fatalf("NewHello: %v", err)
	}
	return kp, hello
}

func TestHelloEncodeDecode(t *testing.T) {
	kp, hello := newTestHello(t)

	encoded, err := EncodeHello(hello)
	if err != nil {
		t.Fatalf("EncodeHello: %v", err)
	}
	decoded, err := DecodeHello(encoded)
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if decoded.PeerID() != kp.PeerID() {
		t.Fatalf("PeerID mismatch")
	}
	if decoded.Capabilities["version"] != "1.0" {
		t.Fatalf("capabilities mismatch")
	}
	if len(decoded.Ciphers) != 2 || decoded.Ciphers[0] != CipherChaCha20Poly1305 {
		t.Fatalf("ciphers = %v", decoded.Ciphers)
	}
}

func TestHelloValidate(t *testing.T) {
	_, hello := newTestHello(t)

	bad := hello
	bad.Version = "PZSSH-0.9"
	if err := bad.Validate(); !errors.Is(err, ErrHelloVersion) {
		t.Fatalf("expected ErrHelloVersion, got %v", err)
	}

	bad = hello
	bad.EphemeralKey = nil
	if err := bad.Validate(); !errors.Is(err, ErrHelloMissingKey) {
		t.Fatalf("expected ErrHelloMissingKey, got %v", err)
	}

	bad = hello
	bad.HostKey = []byte{0x04, 1, 2, 3}
	if err := bad.Validate(); !errors.Is(err, identity.ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}

	bad = hello
	bad.Nonce = bad.Nonce[:8]
	if err := bad.Validate(); !errors.Is(err, ErrHelloBadNonce) {
		t.Fatalf("expected ErrHelloBadNonce, got %v", err)
	}

	bad = hello
	bad.Ciphers = nil
	if err := bad.Validate(); !errors.Is(err, ErrNoCommonAlgorithm) {
		t.Fatalf("expected ErrNoCommonAlgorithm, got %v", err)
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		client, server []string
		want           string
		err            error
	}{
		{[]string{"a", "b"}, []string{"b", "a"}, "a", nil},
		{[]string{"c", "b"}, []string{"a", "b"}, "b", nil},
		{[]string{"c"}, []string{"a", "b"}, "", ErrNoCommonAlgorithm},
		{nil, []string{"a"}, "", ErrNoCommonAlgorithm},
	}
	for _, tt := range tests {
		got, err := Negotiate(tt.client, tt.server)
		if !errors.Is(err, tt.err) || got != tt.want {
			t.Fatalf("Negotiate(%v, %v) = %q, %v; want %q, %v", tt.client, tt.server, got, err, tt.want, tt.err)
		}
	}
}

func TestAuthSignAndVerify(t *testing.T) {
	kp, _ := newTestHello(t)
	h := []byte("exchange hash")

	auth, err := NewAuth(kp, h)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	encoded, err := EncodeAuth(auth)
	if err != nil {
		t.Fatalf("EncodeAuth: %v", err)
	}
	decoded, err := DecodeAuth(encoded)
	if err != nil {
		t.Fatalf("DecodeAuth: %v", err)
	}
	if err := decoded.Verify(kp.PublicKey, h); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := decoded.Verify(kp.PublicKey, []byte("other hash")); !errors.Is(err, ErrAuthBadSignature) {
		t.Fatalf("expected ErrAuthBadSignature, got %v", err)
	}

	other, _ := identity.GenerateKeyPair()
	if err := decoded.Verify(other.PublicKey, h); !errors.Is(err, ErrAuthBadSignature) {
		t.Fatalf("wrong key: expected ErrAuthBadSignature, got %v", err)
	}
	if err := (Auth{}).Verify(kp.PublicKey, h); !errors.Is(err, ErrAuthMissingPayload) {
		t.Fatalf("expected ErrAuthMissingPayload, got %v", err)
	}
}
