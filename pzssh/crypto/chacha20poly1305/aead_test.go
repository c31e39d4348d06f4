package chacha20poly1305

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"

	xchacha "golang.org/x/crypto/chacha20poly1305"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	return b
}

func randomCipher(t *testing.T) (*Cipher, []byte, []byte) {
	t.Helper()
	key := make([]byte, KeySize)
	nonce := make([]byte, NonceSize)
	rand.Read(key)
	rand.Read(nonce)
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, key, nonce
}

// RFC 8439 section 2.3.2.
func TestBlockFunction(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	s := newState(&key, 1, mustHex(t, "000000090000004a00000000"))
	var out [blockSize]byte
	if err := s.next(&out); err != nil {
		t.Fatalf("next: %v", err)
	}
	want := "10f1e7e4d13b5915500fdd1fa32071c4c7d1f4c733c068030422aa9ac3d46c4e" +
		"d2826446079faa0914c2d705d98b02a2b5129cd1de164eb9cbd083e8a2503c4e"
	if got := hex.EncodeToString(out[:]); got != want {
		t.Fatalf("block = %s", got)
	}
	if s.words[12] != 2 {
		t.Fatalf("counter = %d, want 2", s.words[12])
	}
}

// RFC 8439 section 2.5.2.
func TestPoly1305Vector(t *testing.T) {
	key := mustHex(t, "85d6be7857556d337f4452fe42d506a80103808afb0db2fd4abff6af4149f51b")
	tag := poly1305Sum(key, []byte("Cryptographic Forum Research Group"))
	if got := hex.EncodeToString(tag[:]); got != "a8061dc1305136c6c22b8baf0c0127a9" {
		t.Fatalf("tag = %s", got)
	}
}

// RFC 8439 section 2.8.2.
func TestAEADVector(t *testing.T) {
	key := mustHex(t, "808182838485868788898a8b8c8d8e8f909192939495969798999a9b9c9d9e9f")
	nonce := mustHex(t, "070000004041424344454647")
	aad := mustHex(t, "50515253c0c1c2c3c4c5c6c7")
	pt := []byte("Ladies and Gentlemen of the class of '99: If I could offer you only one tip for the future, sunscreen would be it.")
	wantCT := mustHex(t, "d31a8d34648e60db7b86afbc53ef7ec2a4aded51296e08fea9e2b5a736ee62d6"+
		"3dbea45e8ca9671282fafb69da92728b1a71de0a9e060b2905d6a5b67ecd3b36"+
		"92ddbd7f2d778b8c9803aee328091b58fab324e4fad675945585808b4831d7bc"+
		"3ff4def08e4b7a9de576d26586cec64b6116")
	wantTag := mustHex(t, "1ae10b594f09e26a7e902ecbd0600691")

	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sealed, err := c.Seal(nonce, pt, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	var want []byte
	want = append(want, aad...)
	want = append(want, wantCT...)
	want = binary.LittleEndian.AppendUint64(want, uint64(len(aad)))
	want = binary.LittleEndian.AppendUint64(want, uint64(len(wantCT)))
	want = append(want, wantTag...)
	if !bytes.Equal(sealed, want) {
		t.Fatalf("sealed message mismatch:\n got %x\nwant %x", sealed, want)
	}

	gotPT, gotAAD, err := c.Open(nonce, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(gotPT, pt) || !bytes.Equal(gotAAD, aad) {
		t.Fatalf("Open returned wrong plaintext or aad")
	}
}

func TestMatchesXCrypto(t *testing.T) {
	for _, n := range []int{0, 1, 63, 64, 65, 127, 128, 129, 1000} {
		c, key, nonce := randomCipher(t)
		pt := make([]byte, n)
		aad := make([]byte, n%37)
		rand.Read(pt)
		rand.Read(aad)

		sealed, err := c.Seal(nonce, pt, aad)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}

		ref, err := xchacha.New(key)
		if err != nil {
			t.Fatalf("xchacha.New: %v", err)
		}
		want := ref.Seal(nil, nonce, pt, aad)

		ct := sealed[len(aad) : len(aad)+n]
		tag := sealed[len(sealed)-TagSize:]
		if !bytes.Equal(append(append([]byte{}, ct...), tag...), want) {
			t.Fatalf("len %d: ciphertext or tag differs from x/crypto", n)
		}
	}
}

func TestChunkingInvariance(t *testing.T) {
	c, _, nonce := randomCipher(t)
	pt := make([]byte, 1001)
	rand.Read(pt)
	aad := []byte("header")

	want, err := c.Seal(nonce, pt, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for _, chunk := range []int{1, 7, 63, 64, 65, 300} {
		e, err := c.NewEncryptor(nonce)
		if err != nil {
			t.Fatalf("NewEncryptor: %v", err)
		}
		rest := pt
		for len(rest) > chunk {
			if err := e.Update(rest[:chunk]); err != nil {
				t.Fatalf("Update: %v", err)
			}
			rest = rest[chunk:]
		}
		got, err := e.Finalize(rest, aad)
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("chunk %d: sealed output differs", chunk)
		}

		d, err := c.NewDecryptor(nonce)
		if err != nil {
			t.Fatalf("NewDecryptor: %v", err)
		}
		in := got
		for len(in) > chunk {
			if _, err := d.Write(in[:chunk]); err != nil {
				t.Fatalf("Write: %v", err)
			}
			in = in[chunk:]
		}
		gotPT, gotAAD, err := d.Finalize(in)
		if err != nil {
			t.Fatalf("chunk %d: Finalize: %v", chunk, err)
		}
		if !bytes.Equal(gotPT, pt) || !bytes.Equal(gotAAD, aad) {
			t.Fatalf("chunk %d: round trip mismatch", chunk)
		}
	}
}

func TestTamperFails(t *testing.T) {
	c, _, nonce := randomCipher(t)
	sealed, err := c.Seal(nonce, []byte("attack at dawn, bring snacks"), []byte("aad"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for i := range sealed {
		for _, bit := range []byte{0x01, 0x80} {
			bad := append([]byte{}, sealed...)
			bad[i] ^= bit
			pt, aad, err := c.Open(nonce, bad)
			if !errors.Is(err, ErrOpen) {
				t.Fatalf("byte %d bit %x: expected ErrOpen, got %v", i, bit, err)
			}
			if pt != nil || aad != nil {
				t.Fatalf("byte %d: output released on failure", i)
			}
		}
	}

	wrongNonce := append([]byte{}, nonce...)
	wrongNonce[0] ^= 1
	if _, _, err := c.Open(wrongNonce, sealed); !errors.Is(err, ErrOpen) {
		t.Fatalf("wrong nonce: expected ErrOpen, got %v", err)
	}
}

func TestMalformedTrailer(t *testing.T) {
	c, _, nonce := randomCipher(t)
	sealed, err := c.Seal(nonce, []byte("payload"), []byte("aad"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, _, err := c.Open(nonce, sealed[:TrailerSize-1]); !errors.Is(err, ErrOpen) {
		t.Fatalf("short message: expected ErrOpen, got %v", err)
	}
	if _, _, err := c.Open(nonce, sealed[1:]); !errors.Is(err, ErrOpen) {
		t.Fatalf("truncated message: expected ErrOpen, got %v", err)
	}

	huge := append([]byte{}, sealed...)
	binary.LittleEndian.PutUint64(huge[len(huge)-TrailerSize:], ^uint64(0))
	if _, _, err := c.Open(nonce, huge); !errors.Is(err, ErrOpen) {
		t.Fatalf("oversized aad length: expected ErrOpen, got %v", err)
	}

	// An empty message with empty aad is still authenticated.
	empty, err := c.Seal(nonce, nil, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(empty) != TrailerSize {
		t.Fatalf("empty sealed length = %d, want %d", len(empty), TrailerSize)
	}
	pt, aad, err := c.Open(nonce, empty)
	if err != nil || len(pt) != 0 || len(aad) != 0 {
		t.Fatalf("Open(empty) = %q, %q, %v", pt, aad, err)
	}
}

func TestFinalizedContextsRefuse(t *testing.T) {
	c, _, nonce := randomCipher(t)
	e, _ := c.NewEncryptor(nonce)
	sealed, err := e.Finalize([]byte("x"), nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := e.Update([]byte("y")); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Update after Finalize: %v", err)
	}
	if _, err := e.Finalize(nil, nil); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Finalize twice: %v", err)
	}

	d, _ := c.NewDecryptor(nonce)
	if _, _, err := d.Finalize(sealed); err != nil {
		t.Fatalf("Decryptor.Finalize: %v", err)
	}
	if _, err := d.Write([]byte("z")); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Write after Finalize: %v", err)
	}
}

func TestCounterOverflow(t *testing.T) {
	var key [KeySize]byte
	s := newState(&key, ^uint32(0), make([]byte, NonceSize))
	var out [blockSize]byte
	if err := s.next(&out); err != nil {
		t.Fatalf("last block: %v", err)
	}
	if err := s.next(&out); !errors.Is(err, ErrCounterOverflow) {
		t.Fatalf("expected ErrCounterOverflow, got %v", err)
	}
}

func TestInvalidSizes(t *testing.T) {
	if _, err := New(make([]byte, 16)); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
	c, _, _ := randomCipher(t)
	if _, err := c.NewEncryptor(make([]byte, 8)); !errors.Is(err, ErrInvalidNonceSize) {
		t.Fatalf("expected ErrInvalidNonceSize, got %v", err)
	}
	if _, err := c.NewDecryptor(make([]byte, 24)); !errors.Is(err, ErrInvalidNonceSize) {
		t.Fatalf("expected ErrInvalidNonceSize, got %v", err)
	}
}

func BenchmarkSeal1K(b *testing.B) {
	c, _ := New(make([]byte, KeySize))
	nonce := make([]byte, NonceSize)
	pt := make([]byte, 1024)
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Seal(nonce, pt, nil)
	}
}
