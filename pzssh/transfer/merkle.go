package transfer

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
)

var (
	ErrMerkleEmpty      = errors.New("merkle: no chunks provided")
	ErrMerkleProofFail  = errors.New("merkle: proof verification failed")
	ErrMerkleIndexRange = errors.New("merkle: chunk index out of range")
)

// MerkleTree commits to an ordered list of chunk hashes.
type MerkleTree struct {
	leaves int
	nodes  [][]byte // complete binary tree; leaves at [width-1, 2*width-2]
}

// BuildMerkleTree constructs a tree over chunkHashes, padding the leaf
// level to a power of two with SHA-256 of the empty string.
func BuildMerkleTree(chunkHashes [][]byte) (*MerkleTree, error) {
	if len(chunkHashes) == 0 {
		return nil, ErrMerkleEmpty
	}

	width := 1
	for width < len(chunkHashes) {
		width *= 2
	}
	empty := sha2.Sum256(nil)

	nodes := make([][]byte, 2*width-1)
	for i := 0; i < width; i++ {
		if i < len(chunkHashes) {
			nodes[width-1+i] = chunkHashes[i]
		} else {
			nodes[width-1+i] = empty[:]
		}
	}
	for i := width - 2; i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}
	return &MerkleTree{leaves: len(chunkHashes), nodes: nodes}, nil
}

func hashPair(left, right []byte) []byte {
	d := sha2.New()
	d.Write(left)
	d.Write(right)
	return d.Sum(nil)
}

// Root returns the Merkle root hash.
func (m *MerkleTree) Root() []byte { return append([]byte(nil), m.nodes[0]...) }

// RootHex returns the Merkle root as a hex string.
func (m *MerkleTree) RootHex() string { return hex.EncodeToString(m.nodes[0]) }

// Proof is the sibling path from one leaf to the root.
type Proof struct {
	ChunkIndex int      `cbor:"1,keyasint"`
	ChunkHash  []byte   `cbor:"2,keyasint"`
	Siblings   [][]byte `cbor:"3,keyasint"` // from leaf to root
}

func (m *MerkleTree) GenerateProof(chunkIndex int) (Proof, error) {
	if chunkIndex < 0 || chunkIndex >= m.leaves {
		return Proof{}, ErrMerkleIndexRange
	}
	width := (len(m.nodes) + 1) / 2
	idx := width - 1 + chunkIndex

	var siblings [][]byte
	for idx > 0 {
		if idx%2 == 1 {
			siblings = append(siblings, m.nodes[idx+1])
		} else {
			siblings = append(siblings, m.nodes[idx-1])
		}
		idx = (idx - 1) / 2
	}
	return Proof{
		ChunkIndex: chunkIndex,
		ChunkHash:  append([]byte(nil), m.nodes[width-1+chunkIndex]...),
		Siblings:   siblings,
	}, nil
}

// VerifyProof checks a proof against the expected root. The sibling side at
// each level follows from the chunk index.
func VerifyProof(proof Proof, expectedRoot []byte) error {
	if proof.ChunkIndex < 0 || proof.ChunkIndex >= 1<<len(proof.Siblings) {
		return ErrMerkleIndexRange
	}
	current := proof.ChunkHash
	pos := proof.ChunkIndex
	for _, sibling := range proof.Siblings {
		if pos%2 == 1 {
			current = hashPair(sibling, current)
		} else {
			current = hashPair(current, sibling)
		}
		pos /= 2
	}
	if subtle.ConstantTimeCompare(current, expectedRoot) != 1 {
		return ErrMerkleProofFail
	}
	return nil
}

// HashChunk computes the SHA-256 hash of a data chunk.
func HashChunk(data []byte) []byte {
	h := sha2.Sum256(data)
	return h[:]
}
