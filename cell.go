package termgrid

import (
	"golang.org/x/text/width"
)

// Cell is one grid position as reported by the terminal-state authority.
// Content carries zero to two visible glyphs (a base character plus an
// optional combining mark); colors are strings because the authority speaks
// hex strings or the literal "default", resolved against the theme at encode
// time.
type Cell struct {
	Content string `json:"content"`
	FG      string `json:"fg"`
	BG      string `json:"bg"`

	Bold      bool `json:"bold"`
	Dim       bool `json:"dim"`
	Italic    bool `json:"italic"`
	Underline bool `json:"underline"`
	Inverse   bool `json:"inverse"`

	// Wide marks the first column of a double-width character; the cell
	// immediately to its right must be a WideContinuation. Continuation
	// cells are placeholders and are never painted directly.
	Wide             bool `json:"wide"`
	WideContinuation bool `json:"wide_continuation"`
}

// DefaultColor is the authority's marker for "use the theme color".
const DefaultColor = "default"

// BlankCell returns an empty default-colored cell.
func BlankCell() Cell {
	return Cell{Content: " ", FG: DefaultColor, BG: DefaultColor}
}

// IsBlank reports whether the cell paints no glyph.
func (c Cell) IsBlank() bool {
	return c.Content == "" || c.Content == " "
}

// Rune returns the cell's base character, or 0 for a blank cell.
func (c Cell) Rune() rune {
	for _, r := range c.Content {
		return r
	}
	return 0
}

// Row is one line of cells. Wrapped records whether the authority soft-wrapped
// this row into the next; selection text extraction uses it to decide whether
// a row boundary contributes a newline.
type Row struct {
	Cells   []Cell `json:"cells"`
	Wrapped bool   `json:"wrapped"`
}

// RowFromString builds a Row from plain text, assigning default colors and
// deriving wide/wide-continuation pairs from East Asian width. Rows longer
// than cols are truncated; shorter rows are padded with blank cells.
//
// This is a convenience for embedders whose source exposes plain-text rows
// rather than per-cell attributes, and for tests.
func RowFromString(s string, cols int) Row {
	cells := make([]Cell, 0, cols)
	for _, r := range s {
		if len(cells) >= cols {
			break
		}
		c := BlankCell()
		c.Content = string(r)
		if isWideRune(r) {
			if len(cells)+2 > cols {
				break
			}
			c.Wide = true
			cells = append(cells, c)
			cont := BlankCell()
			cont.Content = ""
			cont.WideContinuation = true
			cells = append(cells, cont)
			continue
		}
		cells = append(cells, c)
	}
	for len(cells) < cols {
		cells = append(cells, BlankCell())
	}
	return Row{Cells: cells}
}

// isWideRune reports whether r occupies two terminal columns.
func isWideRune(r rune) bool {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}
