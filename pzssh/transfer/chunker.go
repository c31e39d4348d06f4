package transfer

import (
	"errors"
	"io"
)

// DefaultChunkSize keeps a chunk and its proof inside one binary packet.
const DefaultChunkSize = 16 * 1024

// Chunker splits data into fixed-size chunks.
type Chunker struct {
	chunkSize int
}

// NewChunker creates a new chunker with the specified chunk size.
func NewChunker(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{chunkSize: chunkSize}
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Chunk represents a single data chunk.
type Chunk struct {
	Index int
	Data  []byte
	Hash  []byte
}

// SplitReader splits data from a reader into chunks.
func (c *Chunker) SplitReader(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	for {
		buf := make([]byte, c.chunkSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Data:  buf[:n],
				Hash:  HashChunk(buf[:n]),
			})
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
