package crypto

import (
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hk := hkdf.New(sha2.NewHash, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSessionKeys derives encryption keys for both directions from the shared secret.
// Returns: (initiatorKey, responderKey, each 32 bytes)
func DeriveSessionKeys(sharedSecret, initiatorPub, responderPub []byte) ([]byte, []byte, error) {
	// Both ephemeral public keys bind the keys to this exchange.
	info := make([]byte, 0, len("pzssh-session-keys")+len(initiatorPub)+len(responderPub))
	info = append(info, "pzssh-session-keys"...)
	info = append(info, initiatorPub...)
	info = append(info, responderPub...)

	keyMaterial, err := DeriveKey(sharedSecret, nil, info, 64)
	if err != nil {
		return nil, nil, err
	}
	return keyMaterial[:32], keyMaterial[32:64], nil
}
