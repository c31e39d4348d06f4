package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fxamacker/cbor/v2"
)

var (
	ErrManifest      = errors.New("transfer: invalid manifest")
	ErrChunkOrder    = errors.New("transfer: chunk out of order")
	ErrChunkHash     = errors.New("transfer: chunk does not match its hash")
	ErrSizeMismatch  = errors.New("transfer: reassembled size mismatch")
	ErrFileTooLarge  = errors.New("transfer: file exceeds receiver limit")
	ErrUnexpectedMsg = errors.New("transfer: unexpected message")
)

// MessageConn is an ordered, reliable message channel. *session.Session
// satisfies it.
type MessageConn interface {
	Send(msg []byte) error
	Recv() ([]byte, error)
}

const (
	kindManifest = 1
	kindChunk    = 2
)

// Manifest describes a file before its chunks are sent.
type Manifest struct {
	Name      string `cbor:"1,keyasint"`
	Size      int64  `cbor:"2,keyasint"`
	ChunkSize int    `cbor:"3,keyasint"`
	Chunks    int    `cbor:"4,keyasint"`
	Root      []byte `cbor:"5,keyasint"`
}

type chunkMsg struct {
	Data  []byte `cbor:"1,keyasint"`
	Proof Proof  `cbor:"2,keyasint"`
}

type envelope struct {
	Kind     int       `cbor:"1,keyasint"`
	Manifest *Manifest `cbor:"2,keyasint,omitempty"`
	Chunk    *chunkMsg `cbor:"3,keyasint,omitempty"`
}

func (m Manifest) validate(limit int64) error {
	switch {
	case m.Size < 0 || m.ChunkSize <= 0 || m.Chunks < 0:
		return fmt.Errorf("%w: size %d, chunk size %d, chunks %d", ErrManifest, m.Size, m.ChunkSize, m.Chunks)
	case limit > 0 && m.Size > limit:
		return fmt.Errorf("%w: %d > %d", ErrFileTooLarge, m.Size, limit)
	case int64(m.Chunks) != chunkCount(m.Size, m.ChunkSize):
		return fmt.Errorf("%w: %d chunks for %d bytes", ErrManifest, m.Chunks, m.Size)
	case m.Chunks > 0 && len(m.Root) != 32:
		return fmt.Errorf("%w: root length %d", ErrManifest, len(m.Root))
	}
	return nil
}

// chunkCount is ceil(size/chunkSize) without overflowing near MaxInt64.
func chunkCount(size int64, chunkSize int) int64 {
	n := size / int64(chunkSize)
	if size%int64(chunkSize) != 0 {
		n++
	}
	return n
}

// Options configures Send and Receive.
type Options struct {
	ChunkSize int
	// MaxSize bounds the file a receiver accepts. Zero means no limit.
	MaxSize int64
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Send reads r to the end and streams it over conn as name.
func Send(conn MessageConn, name string, r io.Reader, opts Options) (Manifest, error) {
	chunker := NewChunker(opts.ChunkSize)
	chunks, err := chunker.SplitReader(r)
	if err != nil {
		return Manifest{}, fmt.Errorf("transfer: read %s: %w", name, err)
	}

	m := Manifest{Name: name, ChunkSize: chunker.ChunkSize(), Chunks: len(chunks)}
	var tree *MerkleTree
	if len(chunks) > 0 {
		hashes := make([][]byte, len(chunks))
		for i, c := range chunks {
			hashes[i] = c.Hash
			m.Size += int64(len(c.Data))
		}
		if tree, err = BuildMerkleTree(hashes); err != nil {
			return Manifest{}, err
		}
		m.Root = tree.Root()
	}

	if err := sendEnvelope(conn, envelope{Kind: kindManifest, Manifest: &m}); err != nil {
		return Manifest{}, err
	}
	for _, c := range chunks {
		proof, err := tree.GenerateProof(c.Index)
		if err != nil {
			return Manifest{}, err
		}
		if err := sendEnvelope(conn, envelope{Kind: kindChunk, Chunk: &chunkMsg{Data: c.Data, Proof: proof}}); err != nil {
			return Manifest{}, fmt.Errorf("transfer: chunk %d: %w", c.Index, err)
		}
	}
	opts.logger().Debug("file sent", "name", name, "size", m.Size, "chunks", m.Chunks)
	return m, nil
}

// Receive reads one file from conn and writes it to w. Every chunk is
// checked against the manifest root before it is written, so w never sees
// bytes that fail verification.
func Receive(conn MessageConn, w io.Writer, opts Options) (Manifest, error) {
	env, err := recvEnvelope(conn)
	if err != nil {
		return Manifest{}, err
	}
	if env.Kind != kindManifest || env.Manifest == nil {
		return Manifest{}, fmt.Errorf("%w: kind %d, want manifest", ErrUnexpectedMsg, env.Kind)
	}
	m := *env.Manifest
	if err := m.validate(opts.MaxSize); err != nil {
		return Manifest{}, err
	}

	var written int64
	for i := 0; i < m.Chunks; i++ {
		env, err := recvEnvelope(conn)
		if err != nil {
			return m, err
		}
		if env.Kind != kindChunk || env.Chunk == nil {
			return m, fmt.Errorf("%w: kind %d, want chunk", ErrUnexpectedMsg, env.Kind)
		}
		c := env.Chunk
		if c.Proof.ChunkIndex != i {
			return m, fmt.Errorf("%w: got %d, want %d", ErrChunkOrder, c.Proof.ChunkIndex, i)
		}
		if len(c.Data) > m.ChunkSize || !bytes.Equal(HashChunk(c.Data), c.Proof.ChunkHash) {
			return m, fmt.Errorf("%w: chunk %d", ErrChunkHash, i)
		}
		if err := VerifyProof(c.Proof, m.Root); err != nil {
			return m, fmt.Errorf("transfer: chunk %d: %w", i, err)
		}
		if written+int64(len(c.Data)) > m.Size {
			return m, ErrSizeMismatch
		}
		if _, err := w.Write(c.Data); err != nil {
			return m, err
		}
		written += int64(len(c.Data))
	}
	if written != m.Size {
		return m, fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, written, m.Size)
	}
	opts.logger().Debug("file received", "name", m.Name, "size", m.Size, "chunks", m.Chunks)
	return m, nil
}

func sendEnvelope(conn MessageConn, env envelope) error {
	b, err := cbor.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Send(b)
}

func recvEnvelope(conn MessageConn) (envelope, error) {
	b, err := conn.Recv()
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := cbor.Unmarshal(b, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrUnexpectedMsg, err)
	}
	return env, nil
}
