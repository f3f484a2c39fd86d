package cubit

import (
	"fmt"
	"math/rand/v2"
)

// MetadataSize is the serialized size of one block's Metadata.
const MetadataSize = 3

// Metadata packs a shift vector into 24 bits, 3 bits per row with row 0
// in the most significant position.
type Metadata uint32

// PackShifts packs shifts into Metadata. Each shift is reduced mod 8.
func PackShifts(shifts ShiftVector) Metadata {
	var m Metadata
	for _, s := range shifts {
		m = m<<3 | Metadata(s&7)
	}
	return m
}

// Shifts unpacks the shift vector, row 0 first.
func (m Metadata) Shifts() ShiftVector {
	var shifts ShiftVector
	for r := GridRows - 1; r >= 0; r-- {
		shifts[r] = int(m & 7)
		m >>= 3
	}
	return shifts
}

// Bytes serializes the metadata as 3 big-endian bytes.
func (m Metadata) Bytes() [MetadataSize]byte {
	return [MetadataSize]byte{byte(m >> 16), byte(m >> 8), byte(m)}
}

// MetadataFromBytes parses 3 big-endian bytes.
func MetadataFromBytes(b []byte) (Metadata, error) {
	if len(b) < MetadataSize {
		return 0, fmt.Errorf("%w: metadata needs %d bytes, got %d", ErrBlockReconstruction, MetadataSize, len(b))
	}
	return Metadata(b[0])<<16 | Metadata(b[1])<<8 | Metadata(b[2]), nil
}

// BlockStatus reports how a block was produced.
type BlockStatus uint8

const (
	BlockOK       BlockStatus = iota // Normal encode or decode
	BlockFallback                    // Deterministic fallback after a failure
)

// String returns the status name
func (s BlockStatus) String() string {
	switch s {
	case BlockOK:
		return "ok"
	case BlockFallback:
		return "fallback"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// BlockResult is the outcome of encoding or decoding one block.
// Err is set only when Status is BlockFallback and explains why the
// fallback was taken; it is never fatal.
type BlockResult struct {
	Status         BlockStatus
	Representative byte
	Meta           Metadata
	Score          int
	Data           []byte // Decoded bytes, decode only
	Err            error
}

// EncodeBlock chooses the representative byte and shift metadata of g.
//
// Search failures never reach the caller: the block falls back to a
// majority vote over the unshifted grid with all-zero shifts.
func EncodeBlock(g Grid, trials int, rng *rand.Rand) (res BlockResult) {
	defer func() {
		if r := recover(); r != nil {
			res = encodeFallback(g, fmt.Errorf("%w: %v", ErrBlockReconstruction, r))
		}
	}()

	sr, err := Search(g, trials, rng)
	if err != nil {
		return encodeFallback(g, fmt.Errorf("%w: %w", ErrBlockReconstruction, err))
	}
	return BlockResult{
		Status:         BlockOK,
		Representative: sr.Representative,
		Meta:           PackShifts(sr.Shifts),
		Score:          sr.Score,
	}
}

func encodeFallback(g Grid, err error) BlockResult {
	return BlockResult{
		Status:         BlockFallback,
		Representative: MajorityVote(&g),
		Score:          Score(&g),
		Err:            err,
	}
}

// DecodeBlock rebuilds a grid from a representative byte and its metadata.
//
// The reconstruction assumes a fixed pattern keyed only by column parity:
// even columns are uniform copies of the representative bit, odd columns
// hold the bit in rows 2 and 3 and its complement elsewhere. The recorded
// shifts are then undone by rotating each row right.
//
// This is not an inverse of EncodeBlock. Blocks whose shifted pattern does
// not match the assumed one are reconstructed approximately.
func DecodeBlock(rep byte, meta Metadata) Grid {
	var g Grid
	for c := 0; c < GridCols; c++ {
		bit := (rep >> (7 - c)) & 1
		for r := 0; r < GridRows; r++ {
			switch {
			case c%2 == 0:
				g[r][c] = bit
			case r == 2 || r == 3:
				g[r][c] = bit
			default:
				g[r][c] = bit ^ 1
			}
		}
	}
	return g.RotateRight(meta.Shifts())
}

// decodeBlockBytes decodes one block of a container into its bytes.
// Any failure yields a zero-filled block of the expected length.
func decodeBlockBytes(rep byte, meta Metadata, padding int) (res BlockResult) {
	defer func() {
		if r := recover(); r != nil {
			res = decodeFallback(padding, fmt.Errorf("%w: %v", ErrBlockReconstruction, r))
		}
	}()

	data, err := FromGrid(DecodeBlock(rep, meta), padding)
	if err != nil {
		return decodeFallback(padding, fmt.Errorf("%w: %w", ErrBlockReconstruction, err))
	}
	return BlockResult{Status: BlockOK, Representative: rep, Meta: meta, Data: data}
}

func decodeFallback(padding int, err error) BlockResult {
	if padding < 0 || padding >= BlockSize {
		padding = 0
	}
	return BlockResult{
		Status: BlockFallback,
		Data:   make([]byte, BlockSize-padding),
		Err:    err,
	}
}
