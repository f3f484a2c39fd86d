package cubit

import "fmt"

// ColumnPattern classifies the six bits of one grid column.
type ColumnPattern uint8

const (
	PatternIrregular   ColumnPattern = iota // None of the scored patterns
	PatternUniform                          // All six bits identical
	PatternAlternating                      // No two adjacent bits equal
	PatternCentral                          // Rows 2,3 equal and unlike rows 0 and 5
)

// String returns the pattern name
func (p ColumnPattern) String() string {
	switch p {
	case PatternIrregular:
		return "irregular"
	case PatternUniform:
		return "uniform"
	case PatternAlternating:
		return "alternating"
	case PatternCentral:
		return "central"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// Column pattern weights used by Score.
const (
	weightUniform     = 10
	weightAlternating = 8
	weightCentral     = 6
)

// Weight returns the score contribution of the pattern.
func (p ColumnPattern) Weight() int {
	switch p {
	case PatternUniform:
		return weightUniform
	case PatternAlternating:
		return weightAlternating
	case PatternCentral:
		return weightCentral
	default:
		return 0
	}
}

// ClassifyColumn returns the pattern of column c of g.
//
// The scored patterns are mutually exclusive: a uniform column has equal
// neighbours, and a central column has rows 2 and 3 equal, so it can be
// neither uniform nor alternating.
func ClassifyColumn(g *Grid, c int) ColumnPattern {
	uniform, alternating := true, true
	for r := 1; r < GridRows; r++ {
		if g[r][c] != g[0][c] {
			uniform = false
		}
		if g[r][c] == g[r-1][c] {
			alternating = false
		}
	}
	switch {
	case uniform:
		return PatternUniform
	case alternating:
		return PatternAlternating
	}
	mid := g[2][c]
	if g[3][c] == mid && g[0][c] != mid && g[GridRows-1][c] != mid {
		return PatternCentral
	}
	return PatternIrregular
}

// Score rates the visual regularity of a grid. Higher is more regular.
// The value is only meaningful relative to other scores.
func Score(g *Grid) int {
	score := 0
	for c := 0; c < GridCols; c++ {
		score += ClassifyColumn(g, c).Weight()
	}
	for r := 0; r < GridRows; r++ {
		score += longestRun(g[r])
	}
	return score
}

// longestRun returns the length of the longest run of identical bits.
func longestRun(row [GridCols]uint8) int {
	best, run := 1, 1
	for c := 1; c < GridCols; c++ {
		if row[c] == row[c-1] {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	return best
}
