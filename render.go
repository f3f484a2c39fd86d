package cubit

import (
	"context"
	"fmt"
	"strings"
)

// Symbol describes how a grid cell or column pattern is drawn.
type Symbol struct {
	Glyph   string
	Meaning string
}

// SymbolTable maps the drawable elements of a grid to their glyphs. It has
// no influence on encoding or decoding.
type SymbolTable struct {
	Set, Clear Symbol
	Patterns   [4]Symbol // Indexed by ColumnPattern
}

var defaultSymbols = SymbolTable{
	Set:   Symbol{"#", "bit set"},
	Clear: Symbol{".", "bit clear"},
	Patterns: [4]Symbol{
		PatternIrregular:   {"-", "irregular column"},
		PatternUniform:     {"U", "uniform column"},
		PatternAlternating: {"A", "alternating column"},
		PatternCentral:     {"C", "central column"},
	},
}

// DefaultSymbols returns a copy of the table used by RenderGrid and Legend.
func DefaultSymbols() SymbolTable {
	return defaultSymbols
}

// RenderGrid draws g with the default symbols.
func RenderGrid(g Grid, shifts ShiftVector) string {
	return defaultSymbols.RenderGrid(g, shifts)
}

// Legend lists the default symbols.
func Legend() string {
	return defaultSymbols.Legend()
}

// RenderGrid draws g as text: one line per row prefixed with its shift,
// then a line of column pattern glyphs.
func (t SymbolTable) RenderGrid(g Grid, shifts ShiftVector) string {
	var b strings.Builder
	for r := 0; r < GridRows; r++ {
		fmt.Fprintf(&b, "%d ", shifts[r])
		for c := 0; c < GridCols; c++ {
			if g[r][c] != 0 {
				b.WriteString(t.Set.Glyph)
			} else {
				b.WriteString(t.Clear.Glyph)
			}
		}
		fmt.Fprintf(&b, "  %02x\n", g.Row(r))
	}
	b.WriteString("  ")
	for c := 0; c < GridCols; c++ {
		b.WriteString(t.Patterns[ClassifyColumn(&g, c)].Glyph)
	}
	b.WriteByte('\n')
	return b.String()
}

// Legend lists every glyph of t with its meaning.
func (t SymbolTable) Legend() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", t.Set.Glyph, t.Set.Meaning)
	fmt.Fprintf(&b, "%s %s\n", t.Clear.Glyph, t.Clear.Meaning)
	for _, p := range []ColumnPattern{PatternUniform, PatternAlternating, PatternCentral, PatternIrregular} {
		s := t.Patterns[p]
		fmt.Fprintf(&b, "%s %s (+%d)\n", s.Glyph, s.Meaning, p.Weight())
	}
	return b.String()
}

// BlockTrace records how one block was encoded.
type BlockTrace struct {
	Index   int
	Input   Grid
	Padding int
	Shifted Grid
	Result  BlockResult
}

// Inspect encodes up to limit blocks of data (all when limit <= 0) and
// returns the intermediate grids. With the same Seed it makes the same
// choices as CompressWithOptions.
func Inspect(ctx context.Context, data []byte, opts Options, limit int) ([]BlockTrace, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	opts = opts.normalize()
	blocks := splitBlocks(data)
	if limit > 0 && limit < len(blocks) {
		blocks = blocks[:limit]
	}

	traces := make([]BlockTrace, len(blocks))
	err := forEachBlock(ctx, len(blocks), opts.Workers, func(i int) error {
		g, padding, err := ToGrid(blocks[i])
		if err != nil {
			return err
		}
		res := EncodeBlock(g, opts.Trials, newBlockRand(opts.Seed, i))
		traces[i] = BlockTrace{
			Index:   i,
			Input:   g,
			Padding: padding,
			Shifted: g.RotateLeft(res.Meta.Shifts()),
			Result:  res,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return traces, nil
}
