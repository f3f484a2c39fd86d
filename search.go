package cubit

import (
	"fmt"
	"math/rand/v2"
)

// Search trial limits
const (
	DefaultTrials = 100
	MaxTrials     = 10000
)

// tieBreakRow decides columns whose bit sum is exactly half.
const tieBreakRow = 3

// SearchResult is the outcome of a pattern search over one grid.
type SearchResult struct {
	Representative byte        // One bit per column of Shifted
	Shifts         ShiftVector // Left rotations applied to the input rows
	Shifted        Grid        // Input grid after rotation
	Score          int         // Score of Shifted
}

// Search looks for per-row rotations that make g more regular.
//
// The unshifted grid is the first candidate. Each of the trials iterations
// draws six shifts in [0,7] from rng, rotates the rows left and keeps the
// result only if it scores strictly higher than the best so far, so the
// first grid seen wins ties. The representative byte is then derived from
// the columns of the best grid.
//
// Search is stochastic: different random sources may choose different
// shifts for the same grid.
func Search(g Grid, trials int, rng *rand.Rand) (SearchResult, error) {
	if trials < 1 {
		return SearchResult{}, fmt.Errorf("%w: trials must be positive, got %d", ErrSearch, trials)
	}
	if rng == nil {
		return SearchResult{}, fmt.Errorf("%w: nil random source", ErrSearch)
	}

	best := SearchResult{Shifted: g, Score: Score(&g)}
	for i := 0; i < trials; i++ {
		var shifts ShiftVector
		for r := range shifts {
			shifts[r] = rng.IntN(GridCols)
		}
		shifted := g.RotateLeft(shifts)
		if s := Score(&shifted); s > best.Score {
			best = SearchResult{Shifts: shifts, Shifted: shifted, Score: s}
		}
	}
	best.Representative = representative(&best.Shifted)
	return best, nil
}

// representative derives one bit per column: a sum of 4 or more gives 1,
// 2 or less gives 0 and an even split takes the bit of tieBreakRow.
func representative(g *Grid) byte {
	var b byte
	for c := 0; c < GridCols; c++ {
		var bit uint8
		switch sum := g.ColumnSum(c); {
		case sum >= 4:
			bit = 1
		case sum <= 2:
			bit = 0
		default:
			bit = g[tieBreakRow][c]
		}
		b |= bit << (7 - c)
	}
	return b
}

// MajorityVote derives the representative byte of an unshifted grid by
// plain majority: a column whose mean exceeds one half gives 1.
func MajorityVote(g *Grid) byte {
	var b byte
	for c := 0; c < GridCols; c++ {
		if 2*g.ColumnSum(c) > GridRows {
			b |= 1 << (7 - c)
		}
	}
	return b
}

// newBlockRand returns the random source for one block. Deriving it from
// the seed and block index keeps seeded output independent of scheduling.
func newBlockRand(seed uint64, block int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(block)))
}
