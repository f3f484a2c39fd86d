// Package cubit provides a pure Go implementation of the CUBIT block codec.
//
// CUBIT splits its input into 6-byte blocks and views each block as a 6x8
// bit grid. A randomized search rotates the grid rows to find a regular
// pattern, then summarizes the columns as a single representative byte.
// The per-row rotations (3 bits each) and the padding of the final block
// are kept as metadata, compressed with a general-purpose codec (ZLIB,
// GZIP, ZSTD, Snappy, S2, LZ4, LZ4HC or XZ).
//
// # Basic Usage
//
//	// Compress data
//	compressed, err := cubit.Compress(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decompress data
//	approx, err := cubit.Decompress(compressed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Lossy Reconstruction
//
// Decoding does not invert encoding. Each block is rebuilt from a fixed
// pattern keyed by column parity, so the output always has the original
// length but generally not the original content. Only blocks whose bits
// happen to match the assumed pattern are recovered exactly.
//
// # Container Format
//
// All integers are big-endian:
//
//	offset 0       uint32 original size
//	offset 4       uint32 compressed metadata length (M)
//	offset 8       uint32 compressed padding length (P)
//	offset 12      M bytes compressed metadata, 3 bytes per block
//	offset 12+M    P bytes compressed padding, 1 byte per block
//	offset 12+M+P  representative bytes, 1 byte per block
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use, except
// RegisterCodec which must not race with compression.
package cubit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	log "github.com/sirupsen/logrus"
)

// Version constants
const (
	Version = "1.0.0"
)

// Header size constants
const (
	HeaderSize = 12 // Container header size in bytes
)

// Predefined errors for common failure conditions.
// These can be checked using errors.Is() for programmatic error handling.
var (
	// ErrEmptyInput indicates there was nothing to compress.
	ErrEmptyInput = errors.New("cubit: empty input")

	// ErrInvalidHeader indicates the container is too short to hold a header.
	ErrInvalidHeader = errors.New("cubit: invalid header")

	// ErrCorruptContainer indicates the metadata or padding streams could
	// not be located or decompressed.
	ErrCorruptContainer = errors.New("cubit: corrupt container")

	// ErrBlockReconstruction indicates a single block failed to encode or
	// decode. It is recovered locally and only reported on BlockResult.
	ErrBlockReconstruction = errors.New("cubit: block reconstruction failure")

	// ErrInvalidCodec indicates the codec specified is not supported or registered.
	ErrInvalidCodec = errors.New("cubit: unsupported codec")

	// ErrDataTooLarge indicates the input data exceeds the maximum supported size.
	ErrDataTooLarge = errors.New("cubit: data too large")

	// ErrCompressionFailed indicates the secondary compressor failed.
	ErrCompressionFailed = errors.New("cubit: compression failed")

	// ErrBlockSize indicates a block longer than BlockSize was passed to ToGrid.
	ErrBlockSize = errors.New("cubit: block too large")

	// ErrInvalidPadding indicates a padding value outside [0,5].
	ErrInvalidPadding = errors.New("cubit: invalid padding")

	// ErrSearch indicates the pattern search could not run.
	ErrSearch = errors.New("cubit: pattern search failed")
)

// Header is the 12-byte container header.
type Header struct {
	OriginalSize   uint32 `json:"original_size" msgpack:"original_size"`
	MetadataLength uint32 `json:"metadata_length" msgpack:"metadata_length"`
	PaddingLength  uint32 `json:"padding_length" msgpack:"padding_length"`
}

// ParseHeader parses a container header from bytes
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidHeader
	}
	return &Header{
		OriginalSize:   binary.BigEndian.Uint32(data[0:4]),
		MetadataLength: binary.BigEndian.Uint32(data[4:8]),
		PaddingLength:  binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// Bytes serializes the header to bytes
func (h *Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.OriginalSize)
	binary.BigEndian.PutUint32(buf[4:8], h.MetadataLength)
	binary.BigEndian.PutUint32(buf[8:12], h.PaddingLength)
	return buf
}

// NumBlocks returns the number of blocks described by the header.
func (h *Header) NumBlocks() int {
	return NumBlocks(int(h.OriginalSize))
}

// payloadOffset returns where the representative bytes start.
func (h *Header) payloadOffset() uint64 {
	return HeaderSize + uint64(h.MetadataLength) + uint64(h.PaddingLength)
}

// Options configures CUBIT compression behavior.
type Options struct {
	Codec   Codec  // Secondary codec for the metadata and padding streams
	Level   int    // Secondary compression level (1-9)
	Trials  int    // Pattern search iterations per block
	Seed    uint64 // Search seed; 0 draws a fresh seed for every call
	Workers int    // Parallel block workers (0 = GOMAXPROCS)
}

// DefaultOptions returns default compression options
func DefaultOptions() Options {
	return Options{
		Codec:  ZLIB,
		Level:  6,
		Trials: DefaultTrials,
	}
}

// normalize clamps out-of-range options.
func (o Options) normalize() Options {
	if o.Level < 1 {
		o.Level = 1
	}
	if o.Level > 9 {
		o.Level = 9
	}
	if o.Trials < 1 {
		o.Trials = DefaultTrials
	}
	if o.Trials > MaxTrials {
		o.Trials = MaxTrials
	}
	if o.Seed == 0 {
		o.Seed = rand.Uint64()
	}
	return o.normalizeWorkers()
}

// normalizeWorkers applies the worker default. It is all decoding needs.
func (o Options) normalizeWorkers() Options {
	if o.Workers < 1 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Stats summarizes one compress or decompress call.
type Stats struct {
	Blocks    int // Blocks processed
	Fallbacks int // Blocks that took the fallback path
}

// Compress compresses data with default options.
func Compress(data []byte) ([]byte, error) {
	return CompressWithOptions(data, DefaultOptions())
}

// CompressWithOptions compresses data using specified options.
func CompressWithOptions(data []byte, opts Options) ([]byte, error) {
	return CompressContext(context.Background(), data, opts)
}

// CompressContext compresses data, aborting outstanding blocks when ctx
// is cancelled.
func CompressContext(ctx context.Context, data []byte, opts Options) ([]byte, error) {
	out, _, err := CompressStats(ctx, data, opts)
	return out, err
}

// CompressStats is CompressContext that also reports block statistics.
func CompressStats(ctx context.Context, data []byte, opts Options) ([]byte, Stats, error) {
	if len(data) == 0 {
		return nil, Stats{}, ErrEmptyInput
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, Stats{}, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(data))
	}
	return compressBackend(ctx, data, opts.normalize())
}

// Decompress decompresses a container written with default options.
func Decompress(data []byte) ([]byte, error) {
	return DecompressWithOptions(data, DefaultOptions())
}

// DecompressWithOptions decompresses using opts.Codec for the metadata and
// padding streams. Only Codec and Workers are used.
func DecompressWithOptions(data []byte, opts Options) ([]byte, error) {
	return DecompressContext(context.Background(), data, opts)
}

// DecompressContext decompresses data, aborting outstanding blocks when
// ctx is cancelled.
func DecompressContext(ctx context.Context, data []byte, opts Options) ([]byte, error) {
	out, _, err := DecompressStats(ctx, data, opts)
	return out, err
}

// DecompressStats is DecompressContext that also reports block statistics.
func DecompressStats(ctx context.Context, data []byte, opts Options) ([]byte, Stats, error) {
	if len(data) < HeaderSize {
		return nil, Stats{}, ErrInvalidHeader
	}
	return decompressBackend(ctx, data, opts.normalizeWorkers())
}

// GetInfo returns information about compressed data without decompressing
func GetInfo(data []byte) (*Header, error) {
	return ParseHeader(data)
}

// GetDecompressedSize returns the original size of compressed data
func GetDecompressedSize(data []byte) (int, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	return int(header.OriginalSize), nil
}

func compressBackend(ctx context.Context, data []byte, opts Options) ([]byte, Stats, error) {
	compressor, ok := codecs[opts.Codec]
	if !ok {
		return nil, Stats{}, fmt.Errorf("%w: %s", ErrInvalidCodec, opts.Codec)
	}

	blocks := splitBlocks(data)
	n := len(blocks)
	reps := make([]byte, n)
	meta := make([]byte, n*MetadataSize)
	pads := make([]byte, n)
	status := make([]BlockStatus, n)

	err := forEachBlock(ctx, n, opts.Workers, func(i int) error {
		g, padding, err := ToGrid(blocks[i])
		if err != nil {
			return err
		}
		res := EncodeBlock(g, opts.Trials, newBlockRand(opts.Seed, i))
		if res.Status == BlockFallback {
			log.WithFields(log.Fields{"block": i, "err": res.Err}).Debug("cubit: encode fallback")
		}
		reps[i] = res.Representative
		mb := res.Meta.Bytes()
		copy(meta[i*MetadataSize:], mb[:])
		pads[i] = byte(padding)
		status[i] = res.Status
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	stats := countStats(status)

	compMeta, err := compressor.Compress(meta, opts.Level)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: metadata: %v", ErrCompressionFailed, err)
	}
	compPads, err := compressor.Compress(pads, opts.Level)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: padding: %v", ErrCompressionFailed, err)
	}
	log.WithFields(log.Fields{
		"codec":    opts.Codec,
		"blocks":   n,
		"metadata": len(compMeta),
		"padding":  len(compPads),
	}).Debug("cubit: compressed streams")

	header := Header{
		OriginalSize:   uint32(len(data)),
		MetadataLength: uint32(len(compMeta)),
		PaddingLength:  uint32(len(compPads)),
	}

	result := make([]byte, 0, HeaderSize+len(compMeta)+len(compPads)+n)
	result = append(result, header.Bytes()...)
	result = append(result, compMeta...)
	result = append(result, compPads...)
	result = append(result, reps...)
	return result, stats, nil
}

func decompressBackend(ctx context.Context, data []byte, opts Options) ([]byte, Stats, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, Stats{}, err
	}
	decompressor, ok := codecs[opts.Codec]
	if !ok {
		return nil, Stats{}, fmt.Errorf("%w: %s", ErrInvalidCodec, opts.Codec)
	}

	payload := header.payloadOffset()
	if payload > uint64(len(data)) {
		return nil, Stats{}, fmt.Errorf("%w: streams need %d bytes, have %d", ErrCorruptContainer, payload, len(data))
	}
	metaEnd := HeaderSize + int(header.MetadataLength)
	reps := data[payload:]

	// Streams are decoded only as far as the blocks actually present, so
	// neither a forged original size nor an oversized stream can force
	// large allocations.
	n := min(header.NumBlocks(), len(reps))

	meta, err := decompressor.Decompress(data[HeaderSize:metaEnd], n*MetadataSize)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: metadata: %v", ErrCorruptContainer, err)
	}
	pads, err := decompressor.Decompress(data[metaEnd:payload], n)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: padding: %v", ErrCorruptContainer, err)
	}

	count := len(reps)
	if avail := len(meta) / MetadataSize; avail < count {
		log.WithFields(log.Fields{"blocks": count, "metadata": avail}).Debug("cubit: metadata exhausted early")
		count = avail
	}

	outs := make([][]byte, count)
	status := make([]BlockStatus, count)
	err = forEachBlock(ctx, count, opts.Workers, func(i int) error {
		padding := 0
		if i < len(pads) {
			padding = int(pads[i])
		}
		var res BlockResult
		m, err := MetadataFromBytes(meta[i*MetadataSize:])
		if err != nil {
			res = decodeFallback(padding, err)
		} else {
			res = decodeBlockBytes(reps[i], m, padding)
		}
		if res.Status == BlockFallback {
			log.WithFields(log.Fields{"block": i, "err": res.Err}).Debug("cubit: decode fallback")
		}
		outs[i] = res.Data
		status[i] = res.Status
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}

	out := make([]byte, 0, count*BlockSize)
	for _, b := range outs {
		out = append(out, b...)
	}
	if len(out) > int(header.OriginalSize) {
		out = out[:header.OriginalSize]
	}
	return out, countStats(status), nil
}

func countStats(status []BlockStatus) Stats {
	s := Stats{Blocks: len(status)}
	for _, st := range status {
		if st == BlockFallback {
			s.Fallbacks++
		}
	}
	return s
}
