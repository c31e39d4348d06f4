// Package compress provides the optional LZ4 payload compression that peers
// negotiate in HELLO.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

var (
	ErrCompressionFailed   = errors.New("compress: compression failed")
	ErrDecompressionFailed = errors.New("compress: decompression failed")
	ErrTooLarge            = errors.New("compress: decompressed payload too large")
	ErrUnknownMethod       = errors.New("compress: unknown method")
)

// MaxDecompressedSize bounds the output of Decompress.
const MaxDecompressedSize = 1 << 20

// Level controls the speed/ratio tradeoff.
type Level int

const (
	LevelFast    Level = iota // Fastest, lower ratio
	LevelDefault              // Balanced
	LevelBest                 // Best ratio, slower
)

// Methods, as named in HELLO.
const (
	MethodNone = "none"
	MethodLZ4  = "lz4"
)

var writerPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewWriter(nil)
	},
}

var readerPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewReader(nil)
	},
}

// Compress compresses data into an LZ4 frame.
func Compress(data []byte, level Level) ([]byte, error) {
	var buf bytes.Buffer
	w := writerPool.Get().(*lz4.Writer)
	defer writerPool.Put(w)

	w.Reset(&buf)

	switch level {
	case LevelFast:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Fast))
	case LevelBest:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level9))
	default:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level4))
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses an LZ4 frame of at most MaxDecompressedSize bytes.
func Decompress(data []byte) ([]byte, error) {
	r := readerPool.Get().(*lz4.Reader)
	defer readerPool.Put(r)

	r.Reset(bytes.NewReader(data))

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompressionFailed, err)
	}
	if n > MaxDecompressedSize {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}

// Payload flags for Pack and Unpack.
const (
	flagRaw byte = 0
	flagLZ4 byte = 1
)

// Codec compresses session payloads for one negotiated method.
type Codec struct {
	method string
	level  Level
}

// ForMethod returns the codec for a method name negotiated in HELLO.
func ForMethod(method string) (Codec, error) {
	switch method {
	case MethodNone, "":
		return Codec{method: MethodNone}, nil
	case MethodLZ4:
		return Codec{method: MethodLZ4, level: LevelDefault}, nil
	default:
		return Codec{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

func (c Codec) Method() string { return c.method }

// Pack returns flag ‖ body. The payload is compressed only when the method is
// lz4 and compression makes it smaller.
func (c Codec) Pack(data []byte) []byte {
	if c.method == MethodLZ4 {
		if z, err := Compress(data, c.level); err == nil && len(z) < len(data) {
			return append([]byte{flagLZ4}, z...)
		}
	}
	return append([]byte{flagRaw}, data...)
}

// Unpack reverses Pack. A compressed payload is refused when the codec did
// not negotiate compression.
func (c Codec) Unpack(packed []byte) ([]byte, error) {
	if len(packed) == 0 {
		return nil, ErrDecompressionFailed
	}
	switch packed[0] {
	case flagRaw:
		return append([]byte(nil), packed[1:]...), nil
	case flagLZ4:
		if c.method != MethodLZ4 {
			return nil, fmt.Errorf("%w: lz4 payload without negotiation", ErrDecompressionFailed)
		}
		return Decompress(packed[1:])
	default:
		return nil, fmt.Errorf("%w: flag %d", ErrDecompressionFailed, packed[0])
	}
}
