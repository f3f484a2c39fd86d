package cubit

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	kzlib "github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Codec identifies the secondary compressor applied to the metadata and
// padding streams. The container header does not record it, so both sides
// of a transfer must use the same codec.
type Codec uint8

const (
	ZLIB   Codec = iota // ZLIB/deflate compression (default)
	GZIP                // gzip framing around deflate
	ZSTD                // Zstandard compression
	Snappy              // Snappy compression
	S2                  // S2, a Snappy extension
	LZ4                 // LZ4 compression
	LZ4HC               // LZ4 High Compression
	XZ                  // LZMA2 in xz framing
)

// String returns the codec name
func (c Codec) String() string {
	switch c {
	case ZLIB:
		return "zlib"
	case GZIP:
		return "gzip"
	case ZSTD:
		return "zstd"
	case Snappy:
		return "snappy"
	case S2:
		return "s2"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	case XZ:
		return "xz"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCodec returns the registered codec with the given name.
func ParseCodec(name string) (Codec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, c := range codecs {
		if c.Name() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCodec, name)
}

// CodecInterface defines the interface for compression codecs
type CodecInterface interface {
	// Compress compresses data with the given level (1-9)
	Compress(data []byte, level int) ([]byte, error)

	// Decompress decompresses at most expectedSize bytes of data. Output
	// past expectedSize is never produced.
	Decompress(data []byte, expectedSize int) ([]byte, error)

	// Name returns the codec name
	Name() string
}

// codecs maps codec IDs to implementations
var codecs = map[Codec]CodecInterface{
	ZLIB:   &zlibCodec{},
	GZIP:   &gzipCodec{},
	ZSTD:   &zstdCodec{},
	Snappy: &snappyCodec{},
	S2:     &s2Codec{},
	LZ4:    &lz4Codec{},
	LZ4HC:  &lz4hcCodec{},
	XZ:     &xzCodec{},
}

// RegisterCodec registers a custom codec implementation
func RegisterCodec(id Codec, codec CodecInterface) {
	codecs[id] = codec
}

// GetCodec returns the codec implementation for the given ID
func GetCodec(id Codec) (CodecInterface, bool) {
	c, ok := codecs[id]
	return c, ok
}

// ListCodecs returns all registered codec IDs
func ListCodecs() []Codec {
	result := make([]Codec, 0, len(codecs))
	for id := range codecs {
		result = append(result, id)
	}
	return result
}

// readAllExpected reads at most expectedSize bytes from r. A longer stream
// is truncated without decoding the rest.
func readAllExpected(r io.Reader, expectedSize int) ([]byte, error) {
	if expectedSize < 0 {
		expectedSize = 0
	}
	buf := bytes.NewBuffer(make([]byte, 0, expectedSize))
	if _, err := io.Copy(buf, io.LimitReader(r, int64(expectedSize))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// ZLIB Codec (using klauspost/compress for better performance)
// =============================================================================

type zlibCodec struct{}

func (c *zlibCodec) Name() string { return "zlib" }

func (c *zlibCodec) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := kzlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("zlib create writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *zlibCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	r, err := kzlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib create reader: %w", err)
	}
	defer r.Close()

	out, err := readAllExpected(r, expectedSize)
	if err != nil {
		return nil, fmt.Errorf("zlib read: %w", err)
	}
	return out, nil
}

// =============================================================================
// GZIP Codec
// =============================================================================

type gzipCodec struct{}

func (c *gzipCodec) Name() string { return "gzip" }

func (c *gzipCodec) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := kgzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("gzip create writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	r, err := kgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip create reader: %w", err)
	}
	defer r.Close()

	out, err := readAllExpected(r, expectedSize)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// =============================================================================
// ZSTD Codec (with persistent encoders/decoders for performance)
// =============================================================================

type zstdCodec struct{}

func (c *zstdCodec) Name() string { return "zstd" }

// Persistent ZSTD encoders by level - initialized once, reused forever.
// EncodeAll is concurrent-safe, so multiple goroutines can share these.
var zstdEncoders = func() [4]*zstd.Encoder {
	var encoders [4]*zstd.Encoder
	levels := []zstd.EncoderLevel{
		zstd.SpeedFastest,
		zstd.SpeedDefault,
		zstd.SpeedBetterCompression,
		zstd.SpeedBestCompression,
	}
	for i, level := range levels {
		e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		encoders[i] = e
	}
	return encoders
}()

func (c *zstdCodec) Compress(data []byte, level int) ([]byte, error) {
	idx := 1
	switch {
	case level <= 2:
		idx = 0
	case level <= 4:
		idx = 1
	case level <= 6:
		idx = 2
	default:
		idx = 3
	}
	return zstdEncoders[idx].EncodeAll(data, nil), nil
}

// Decompress streams rather than using DecodeAll, which would inflate the
// whole frame before the size limit applies.
func (c *zstdCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	d, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd create reader: %w", err)
	}
	defer d.Close()

	out, err := readAllExpected(d, expectedSize)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// =============================================================================
// Snappy and S2 Codecs
//
// The framed stream formats are used so that decoding can stop at the size
// limit. The block formats allocate their full declared length up front.
// =============================================================================

type snappyCodec struct{}

func (c *snappyCodec) Name() string { return "snappy" }

func (c *snappyCodec) Compress(data []byte, level int) ([]byte, error) {
	// Snappy doesn't have compression levels
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("snappy write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("snappy close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *snappyCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	out, err := readAllExpected(snappy.NewReader(bytes.NewReader(data)), expectedSize)
	if err != nil {
		return nil, fmt.Errorf("snappy read: %w", err)
	}
	return out, nil
}

type s2Codec struct{}

func (c *s2Codec) Name() string { return "s2" }

func (c *s2Codec) Compress(data []byte, level int) ([]byte, error) {
	var opts []s2.WriterOption
	switch {
	case level <= 3:
	case level <= 6:
		opts = append(opts, s2.WriterBetterCompression())
	default:
		opts = append(opts, s2.WriterBestCompression())
	}

	var buf bytes.Buffer
	w := s2.NewWriter(&buf, opts...)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("s2 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("s2 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *s2Codec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	out, err := readAllExpected(s2.NewReader(bytes.NewReader(data)), expectedSize)
	if err != nil {
		return nil, fmt.Errorf("s2 read: %w", err)
	}
	return out, nil
}

// =============================================================================
// LZ4 Codecs
//
// Both use the LZ4 frame format. LZ4 compresses with the fast compressor,
// LZ4HC maps levels 1-9 onto the high compression levels.
// =============================================================================

type lz4Codec struct{}

func (c *lz4Codec) Name() string { return "lz4" }

func (c *lz4Codec) Compress(data []byte, level int) ([]byte, error) {
	return lz4Compress("lz4", data, lz4.Fast)
}

func (c *lz4Codec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	return lz4Uncompress("lz4", data, expectedSize)
}

type lz4hcCodec struct{}

func (c *lz4hcCodec) Name() string { return "lz4hc" }

func (c *lz4hcCodec) Compress(data []byte, level int) ([]byte, error) {
	// Map 1-9 to LZ4 compression levels
	var lz4Level lz4.CompressionLevel
	switch {
	case level <= 3:
		lz4Level = lz4.Level1
	case level <= 5:
		lz4Level = lz4.Level5
	case level <= 7:
		lz4Level = lz4.Level7
	default:
		lz4Level = lz4.Level9
	}
	return lz4Compress("lz4hc", data, lz4Level)
}

func (c *lz4hcCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	return lz4Uncompress("lz4hc", data, expectedSize)
}

func lz4Compress(name string, data []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, fmt.Errorf("%s options: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%s write: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s close: %w", name, err)
	}
	return buf.Bytes(), nil
}

func lz4Uncompress(name string, data []byte, expectedSize int) ([]byte, error) {
	out, err := readAllExpected(lz4.NewReader(bytes.NewReader(data)), expectedSize)
	if err != nil {
		return nil, fmt.Errorf("%s read: %w", name, err)
	}
	return out, nil
}

// =============================================================================
// XZ Codec
// =============================================================================

type xzCodec struct{}

func (c *xzCodec) Name() string { return "xz" }

func (c *xzCodec) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz create writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("xz write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("xz close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *xzCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz create reader: %w", err)
	}
	out, err := readAllExpected(r, expectedSize)
	if err != nil {
		return nil, fmt.Errorf("xz read: %w", err)
	}
	return out, nil
}
