package identity

import (
	"encoding/hex"
	"errors"

	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

// PeerID is the stable identifier for a peer.
// It is defined as: PeerID = SHA-256(uncompressed public key).
type PeerID [32]byte

func PeerIDFromPublicKey(publicKey []byte) PeerID {
	return PeerID(sha2.Sum256(publicKey))
}

func ParsePeerIDHex(s string) (PeerID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PeerID{}, err
	}
	if len(b) != 32 {
		return PeerID{}, errors.New("invalid PeerID length")
	}
	var id PeerID
	copy(id[:], b)
	return id, nil
}

func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}
