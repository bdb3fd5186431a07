package backend

import (
	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/atlas"
	"github.com/gogpu/termgrid/encode"
)

func init() {
	Register(BackendSoftware, func(cfg Config) (Rasterizer, error) {
		return NewSoftware(cfg)
	})
}

// Software is the CPU rasterizer. It walks packed cell records in two
// passes, backgrounds first and then glyph coverage, so wide glyphs can
// spill over a neighbor's background without being overdrawn.
type Software struct {
	cfg     Config
	atlas   *atlas.Atlas
	encoder *encode.Encoder
	target  *termgrid.Pixmap

	rows, cols int
}

// NewSoftware creates the software rasterizer. It never fails for valid
// font data, which keeps it usable as the universal fallback.
func NewSoftware(cfg Config) (*Software, error) {
	if cfg.Theme == (termgrid.Theme{}) {
		cfg.Theme = termgrid.DefaultTheme()
	}
	if cfg.Density <= 0 {
		cfg.Density = 1.0
	}

	a, err := atlas.New(cfg.Fonts, atlas.Config{
		FontSize: cfg.FontSize,
		Density:  cfg.Density,
	})
	if err != nil {
		return nil, err
	}
	a.PopulateASCII()

	s := &Software{
		cfg:     cfg,
		atlas:   a,
		encoder: encode.NewEncoder(cfg.Theme),
		target:  termgrid.NewPixmap(cfg.Width, cfg.Height),
	}
	s.recomputeGrid()
	return s, nil
}

func (s *Software) Name() string { return BackendSoftware }

// Atlas exposes the glyph atlas, mainly for tests and the demo tool.
func (s *Software) Atlas() *atlas.Atlas { return s.atlas }

func (s *Software) Metrics() atlas.Metrics { return s.atlas.Metrics() }

func (s *Software) GridSize() (rows, cols int) { return s.rows, s.cols }

func (s *Software) Target() *termgrid.Pixmap { return s.target }

func (s *Software) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrNotInitialized
	}
	s.target.Resize(width, height)
	s.recomputeGrid()
	return nil
}

func (s *Software) SetDensity(density float64) error {
	if density == s.atlas.Density() {
		return nil
	}
	if err := s.atlas.Invalidate(density); err != nil {
		return err
	}
	s.atlas.PopulateASCII()
	s.cfg.Density = density
	s.recomputeGrid()
	return nil
}

// SetTheme swaps the palette. Takes effect on the next Render.
func (s *Software) SetTheme(theme termgrid.Theme) {
	s.cfg.Theme = theme
	s.encoder.SetTheme(theme)
}

func (s *Software) Close() {}

func (s *Software) recomputeGrid() {
	m := s.atlas.Metrics()
	s.cols = s.target.Width() / m.CellWidth
	s.rows = s.target.Height() / m.CellHeight
}

// Render draws the frame into the target pixmap.
func (s *Software) Render(frame Frame) error {
	if s.target.Width() == 0 || s.target.Height() == 0 {
		return ErrNotInitialized
	}

	s.target.Clear(s.encoder.Background())

	snap := frame.Snapshot
	if snap == nil || snap.Dimensions.Rows <= 0 || snap.Dimensions.Cols <= 0 {
		return nil
	}

	records := s.encoder.Encode(snap, frame.Selection, s.atlas)
	m := s.atlas.Metrics()
	rows, cols := snap.Dimensions.Rows, snap.Dimensions.Cols
	selBG := s.encoder.SelectionBackground()

	// Pass 1: backgrounds.
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			off := (r*cols + c) * encode.WordsPerCell
			word3 := records[off+3]
			cellBG := termgrid.PackedColor(records[off+1])
			if word3&encode.FlagSelected != 0 {
				cellBG = selBG
			}
			s.target.FillRect(c*m.CellWidth, r*m.CellHeight, m.CellWidth, m.CellHeight, cellBG)
		}
	}

	// Pass 2: glyphs, underlines, cursor.
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			off := (r*cols + c) * encode.WordsPerCell
			word2, word3 := records[off+2], records[off+3]
			fg := termgrid.PackedColor(records[off])

			gw := int(word3 >> 24)
			gh := int(word3 >> 16 & 0xFF)
			if gw > 0 && gh > 0 {
				gx := int(word2 >> 16)
				gy := int(word2 & 0xFFFF)
				s.blitGlyph(gx, gy, gw, gh, c*m.CellWidth, r*m.CellHeight, fg)
			}

			underline := word3&encode.FlagUnderline != 0
			if frame.Hover.Active && frame.Hover.Contains(r, c) {
				underline = true
			}
			if underline {
				t := UnderlineThickness(s.cfg.Density)
				s.target.FillRect(c*m.CellWidth, (r+1)*m.CellHeight-t, m.CellWidth, t, fg)
			}
		}
	}

	s.drawCursor(snap, records, m)
	DrawScrollbar(s.target, snap, s.encoder.Foreground(), s.cfg.Density)
	return nil
}

// blitGlyph blends atlas coverage into the target with the cell color.
func (s *Software) blitGlyph(gx, gy, gw, gh, dstX, dstY int, fg termgrid.PackedColor) {
	data := s.atlas.Data()
	atlasW, _ := s.atlas.Size()
	for row := 0; row < gh; row++ {
		srcOff := (gy+row)*atlasW + gx
		for col := 0; col < gw; col++ {
			if cov := data[srcOff+col]; cov > 0 {
				s.target.BlendPixel(dstX+col, dstY+row, fg, cov)
			}
		}
	}
}

// drawCursor paints a block cursor and re-draws the covered glyph in the
// accent color. Hidden cursors and scrolled-back views draw nothing.
func (s *Software) drawCursor(snap *termgrid.Snapshot, records []uint32, m atlas.Metrics) {
	if snap.CursorHidden || snap.ScrollbackOffset > 0 {
		return
	}
	r, c := snap.Cursor.Row, snap.Cursor.Col
	if r < 0 || r >= snap.Dimensions.Rows || c < 0 || c >= snap.Dimensions.Cols {
		return
	}

	s.target.FillRect(c*m.CellWidth, r*m.CellHeight, m.CellWidth, m.CellHeight, s.encoder.CursorColor())

	off := (r*snap.Dimensions.Cols + c) * encode.WordsPerCell
	word2, word3 := records[off+2], records[off+3]
	gw := int(word3 >> 24)
	gh := int(word3 >> 16 & 0xFF)
	if gw > 0 && gh > 0 {
		s.blitGlyph(int(word2>>16), int(word2&0xFFFF), gw, gh, c*m.CellWidth, r*m.CellHeight, s.encoder.CursorAccent())
	}
}

