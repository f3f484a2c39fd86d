package cubit

import (
	"fmt"
	"math/bits"
)

// Grid dimensions
const (
	BlockSize = 6 // Bytes per block, one grid row each
	GridRows  = BlockSize
	GridCols  = 8 // Bits per byte, column 0 is the MSB
)

// Grid is a 6x8 bit matrix. Row r holds the bits of byte r of a block,
// most-significant bit first. Each cell is 0 or 1.
type Grid [GridRows][GridCols]uint8

// ShiftVector holds one left-rotation amount in [0,7] per grid row.
type ShiftVector [GridRows]int

// ToGrid converts a block of up to 6 bytes into a grid.
//
// Blocks shorter than BlockSize are right-padded with zero bytes and the
// number of added bytes is returned as padding. A block longer than
// BlockSize is a caller bug and returns ErrBlockSize.
func ToGrid(block []byte) (g Grid, padding int, err error) {
	if len(block) > BlockSize {
		return g, 0, fmt.Errorf("%w: got %d bytes", ErrBlockSize, len(block))
	}
	padding = BlockSize - len(block)
	for r, b := range block {
		g[r] = byteToRow(b)
	}
	return g, padding, nil
}

// FromGrid packs the first 6-padding rows of g back into bytes.
func FromGrid(g Grid, padding int) ([]byte, error) {
	if padding < 0 || padding >= BlockSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPadding, padding)
	}
	out := make([]byte, BlockSize-padding)
	for r := range out {
		out[r] = rowToByte(g[r])
	}
	return out, nil
}

// Row returns row r packed into a byte.
func (g *Grid) Row(r int) byte {
	return rowToByte(g[r])
}

// ColumnSum returns the number of set bits in column c.
func (g *Grid) ColumnSum(c int) int {
	sum := 0
	for r := 0; r < GridRows; r++ {
		sum += int(g[r][c])
	}
	return sum
}

// RotateLeft returns a copy of g with row i rotated left by shifts[i].
func (g Grid) RotateLeft(shifts ShiftVector) Grid {
	var out Grid
	for r := 0; r < GridRows; r++ {
		out[r] = byteToRow(bits.RotateLeft8(rowToByte(g[r]), shifts[r]))
	}
	return out
}

// RotateRight returns a copy of g with row i rotated right by shifts[i].
// It undoes RotateLeft with the same shifts.
func (g Grid) RotateRight(shifts ShiftVector) Grid {
	var out Grid
	for r := 0; r < GridRows; r++ {
		out[r] = byteToRow(bits.RotateLeft8(rowToByte(g[r]), -shifts[r]))
	}
	return out
}

func byteToRow(b byte) (row [GridCols]uint8) {
	for c := 0; c < GridCols; c++ {
		row[c] = (b >> (7 - c)) & 1
	}
	return row
}

func rowToByte(row [GridCols]uint8) byte {
	var b byte
	for c := 0; c < GridCols; c++ {
		if row[c] != 0 {
			b |= 1 << (7 - c)
		}
	}
	return b
}

// splitBlocks slices data into consecutive 6-byte blocks; the last block
// may be shorter. The returned slices alias data.
func splitBlocks(data []byte) [][]byte {
	n := NumBlocks(len(data))
	blocks := make([][]byte, n)
	for i := 0; i < n; i++ {
		end := (i + 1) * BlockSize
		if end > len(data) {
			end = len(data)
		}
		blocks[i] = data[i*BlockSize : end]
	}
	return blocks
}

// NumBlocks returns the number of blocks needed for size bytes.
func NumBlocks(size int) int {
	return (size + BlockSize - 1) / BlockSize
}
