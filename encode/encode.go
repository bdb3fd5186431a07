// Package encode flattens a grid snapshot into packed per-cell records.
//
// Each cell becomes four uint32 words:
//
//	word0  foreground color, 0xRRGGBBAA
//	word1  background color, 0xRRGGBBAA
//	word2  glyph atlas position, x<<16 | y
//	word3  glyph size and style, w<<24 | h<<16 | flags
//
// The layout is shared by the GPU backend (uploaded as an integer
// texture) and the software backend (walked directly).
package encode

import (
	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/atlas"
)

// WordsPerCell is the record width in uint32 words.
const WordsPerCell = 4

// Style flag bits stored in the low byte of word3.
const (
	FlagBold             = 1 << 0
	FlagItalic           = 1 << 1
	FlagUnderline        = 1 << 2
	FlagDim              = 1 << 3
	FlagInverse          = 1 << 4
	FlagWide             = 1 << 5
	FlagWideContinuation = 1 << 6
	FlagSelected         = 1 << 7
)

// GlyphSource supplies atlas rectangles for styled runes. Satisfied by
// *atlas.Atlas.
type GlyphSource interface {
	GetGlyph(char rune, bold, italic bool) atlas.GlyphEntry
}

// Encoder turns snapshots into packed cell records. The backing arena
// grows to the largest grid seen and is never shrunk, so steady-state
// encoding allocates nothing.
type Encoder struct {
	theme  termgrid.Theme
	colors *termgrid.ColorCache
	buf    []uint32

	defaultFG termgrid.PackedColor
	defaultBG termgrid.PackedColor
}

// NewEncoder creates an encoder for the given theme.
func NewEncoder(theme termgrid.Theme) *Encoder {
	e := &Encoder{colors: termgrid.NewColorCache()}
	e.SetTheme(theme)
	return e
}

// SetTheme replaces the palette used for color resolution.
func (e *Encoder) SetTheme(theme termgrid.Theme) {
	e.theme = theme
	e.defaultFG = e.colors.Parse(theme.Foreground)
	e.defaultBG = e.colors.Parse(theme.Background)
}

// Theme returns the current palette.
func (e *Encoder) Theme() termgrid.Theme { return e.theme }

// Background returns the packed default background color.
func (e *Encoder) Background() termgrid.PackedColor { return e.defaultBG }

// Foreground returns the packed default foreground color.
func (e *Encoder) Foreground() termgrid.PackedColor { return e.defaultFG }

// SelectionBackground returns the packed selection highlight color.
func (e *Encoder) SelectionBackground() termgrid.PackedColor {
	return e.colors.Parse(e.theme.SelectionBackground)
}

// CursorColor returns the packed cursor block color.
func (e *Encoder) CursorColor() termgrid.PackedColor {
	return e.colors.Parse(e.theme.Cursor)
}

// CursorAccent returns the packed color for the glyph under the cursor.
func (e *Encoder) CursorAccent() termgrid.PackedColor {
	return e.colors.Parse(e.theme.CursorAccent)
}

// Encode packs the snapshot into cell records for a rows*cols grid. Rows
// or cells the snapshot is missing encode as blanks, and rows beyond the
// grid are dropped, so a stale snapshot still yields a well-formed frame.
// The returned slice is valid until the next Encode call.
func (e *Encoder) Encode(snap *termgrid.Snapshot, sel termgrid.Selection, glyphs GlyphSource) []uint32 {
	rows, cols := snap.Dimensions.Rows, snap.Dimensions.Cols
	if rows <= 0 || cols <= 0 {
		return nil
	}

	need := rows * cols * WordsPerCell
	if cap(e.buf) < need {
		e.buf = make([]uint32, need)
	}
	out := e.buf[:need]

	blank0, blank1 := uint32(e.defaultFG), uint32(e.defaultBG)

	for r := 0; r < rows; r++ {
		var row []termgrid.Cell
		if r < len(snap.Rows) {
			row = snap.Rows[r].Cells
		}
		for c := 0; c < cols; c++ {
			off := (r*cols + c) * WordsPerCell
			if c >= len(row) {
				out[off+0] = blank0
				out[off+1] = blank1
				out[off+2] = 0
				out[off+3] = 0
				continue
			}
			e.encodeCell(out[off:off+WordsPerCell], &row[c], sel.Active && sel.Contains(r, c), glyphs)
		}
	}
	return out
}

func (e *Encoder) encodeCell(dst []uint32, cell *termgrid.Cell, selected bool, glyphs GlyphSource) {
	fg := e.resolve(cell.FG, e.defaultFG)
	bg := e.resolve(cell.BG, e.defaultBG)

	if cell.Inverse {
		fg, bg = bg, fg
	}
	if cell.Dim {
		fg = termgrid.Dim(fg)
	}

	var flags uint32
	if cell.Bold {
		flags |= FlagBold
	}
	if cell.Dim {
		flags |= FlagDim
	}
	if cell.Italic {
		flags |= FlagItalic
	}
	if cell.Underline {
		flags |= FlagUnderline
	}
	if cell.Inverse {
		flags |= FlagInverse
	}
	if cell.Wide {
		flags |= FlagWide
	}
	if cell.WideContinuation {
		flags |= FlagWideContinuation
	}
	if selected {
		flags |= FlagSelected
	}

	var glyph atlas.GlyphEntry
	if r := cell.Rune(); r != 0 && r != ' ' && !cell.WideContinuation && glyphs != nil {
		glyph = glyphs.GetGlyph(r, cell.Bold, cell.Italic)
	}

	dst[0] = uint32(fg)
	dst[1] = uint32(bg)
	dst[2] = uint32(glyph.X)<<16 | uint32(glyph.Y)&0xFFFF
	dst[3] = uint32(glyph.W)<<24 | uint32(glyph.H)<<16 | flags
}

// resolve maps a cell color string to a packed color. The empty string
// and "default" use the theme default; ANSI names use the palette; any
// other value is parsed as CSS-style hex or rgb().
func (e *Encoder) resolve(name string, def termgrid.PackedColor) termgrid.PackedColor {
	if name == "" || name == termgrid.DefaultColor {
		return def
	}
	if hex, ok := e.theme.AnsiColor(name); ok {
		return e.colors.Parse(hex)
	}
	return e.colors.Parse(name)
}
