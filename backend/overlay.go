package backend

import (
	"math"

	"github.com/gogpu/termgrid"
)

// UnderlineThickness is the underline band height in device pixels at
// the given density. Both backends use it so their output matches.
func UnderlineThickness(density float64) int {
	t := int(math.Round(density))
	if t < 1 {
		t = 1
	}
	return t
}

// BlendRect blends a translucent rectangle into the pixmap. The alpha
// parameter is coverage, 0 to 255.
func BlendRect(p *termgrid.Pixmap, x, y, w, h int, c termgrid.PackedColor, alpha uint8) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			p.BlendPixel(col, row, c, alpha)
		}
	}
}

// DrawScrollbar paints a track and proportional thumb along the right
// edge of the target while the snapshot is scrolled into history. Draws
// nothing at the bottom of scrollback.
func DrawScrollbar(p *termgrid.Pixmap, snap *termgrid.Snapshot, fg termgrid.PackedColor, density float64) {
	if snap == nil || snap.ScrollbackOffset <= 0 || snap.TotalScrollback <= 0 {
		return
	}
	if snap.Dimensions.Rows <= 0 {
		return
	}

	h := p.Height()
	trackW := int(math.Round(6 * density))
	if trackW < 3 {
		trackW = 3
	}
	trackX := p.Width() - trackW

	totalLines := snap.TotalScrollback + snap.Dimensions.Rows
	firstVisible := snap.TotalScrollback - snap.ScrollbackOffset
	if firstVisible < 0 {
		firstVisible = 0
	}

	thumbH := h * snap.Dimensions.Rows / totalLines
	minThumb := int(math.Round(20 * density))
	if thumbH < minThumb {
		thumbH = minThumb
	}
	thumbY := (h - thumbH) * firstVisible / (totalLines - snap.Dimensions.Rows)

	BlendRect(p, trackX, 0, trackW, h, fg, 0x30)
	BlendRect(p, trackX, thumbY, trackW, thumbH, fg, 0x90)
}
