package appendstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/pretty"
)

// Codec converts a collection to bytes stored in the backend and back
type Codec[T any] interface {
	Marshal(recs []T) ([]byte, error)
	Unmarshal(d []byte) ([]T, error)
}

type jsonCodec[T any] struct {
	indent bool
}

// JSON returns a codec that stores a collection as a compact JSON array
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

// JSONIndented is like JSON but stores human-readable JSON.
// Both read each other's data.
func JSONIndented[T any]() Codec[T] {
	return jsonCodec[T]{indent: true}
}

func (c jsonCodec[T]) Marshal(recs []T) ([]byte, error) {
	d, err := json.Marshal(recs)
	if err != nil {
		return nil, err
	}
	if c.indent {
		d = pretty.Pretty(d)
	}
	return d, nil
}

func (c jsonCodec[T]) Unmarshal(d []byte) ([]T, error) {
	var recs []T
	if err := json.Unmarshal(d, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionBrotli
)

// first byte of compressed value
const (
	tagNone   byte = 'n'
	tagZstd   byte = 'z'
	tagBrotli byte = 'b'
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionBrotli:
		return "brotli"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression is the reverse of Compression.String()
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "brotli", "br":
		return CompressionBrotli, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression '%s'", s)
}

// DefaultMaxDecompressedSize limits how much Compressed codec will
// decompress a single value to
const DefaultMaxDecompressedSize = 256 << 20

type compressedCodec[T any] struct {
	inner Codec[T]
	comp  Compression
	// max size of decompressed value
	limit int
}

// Compressed wraps codec so that the value is prefixed with a one byte
// tag and compressed with comp. Unmarshal accepts every compression,
// so changing comp doesn't make existing data unreadable.
func Compressed[T any](codec Codec[T], comp Compression) Codec[T] {
	return CompressedWithLimit(codec, comp, DefaultMaxDecompressedSize)
}

// CompressedWithLimit is like Compressed but Unmarshal fails if a value
// decompresses to more than maxDecompressedSize bytes
func CompressedWithLimit[T any](codec Codec[T], comp Compression, maxDecompressedSize int) Codec[T] {
	if maxDecompressedSize <= 0 {
		maxDecompressedSize = DefaultMaxDecompressedSize
	}
	return compressedCodec[T]{
		inner: codec,
		comp:  comp,
		limit: maxDecompressedSize,
	}
}

func (c compressedCodec[T]) Marshal(recs []T) ([]byte, error) {
	d, err := c.inner.Marshal(recs)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch c.comp {
	case CompressionNone:
		buf.WriteByte(tagNone)
		buf.Write(d)
	case CompressionZstd:
		buf.WriteByte(tagZstd)
		err = zstdCompress(&buf, d)
	case CompressionBrotli:
		buf.WriteByte(tagBrotli)
		err = brotliCompress(&buf, d)
	default:
		return nil, fmt.Errorf("unknown compression %s", c.comp)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c compressedCodec[T]) Unmarshal(d []byte) ([]T, error) {
	if len(d) == 0 {
		return nil, fmt.Errorf("missing compression tag")
	}
	tag := d[0]
	d = d[1:]
	var err error
	switch tag {
	case tagNone:
		// no-op
	case tagZstd:
		d, err = zstdDecompress(d, c.limit)
	case tagBrotli:
		d, err = readAllLimited(brotli.NewReader(bytes.NewReader(d)), c.limit)
	default:
		return nil, fmt.Errorf("unknown compression tag 0x%x", tag)
	}
	if err != nil {
		return nil, err
	}
	return c.inner.Unmarshal(d)
}

func zstdCompress(dst io.Writer, d []byte) error {
	w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err = w.Write(d); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func zstdDecompress(d []byte, limit int) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(d))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return readAllLimited(zr, limit)
}

func readAllLimited(r io.Reader, limit int) ([]byte, error) {
	d, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(d) > limit {
		return nil, fmt.Errorf("decompressed value is bigger than %d bytes", limit)
	}
	return d, nil
}

func brotliCompress(dst io.Writer, d []byte) error {
	w := brotli.NewWriterLevel(dst, brotli.DefaultCompression)
	if _, err := w.Write(d); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
