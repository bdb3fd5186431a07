// Package atlas rasterizes terminal glyphs into a shared alpha texture.
//
// Glyphs are drawn into fixed cell-sized boxes (double width for wide
// runes) so that an atlas rectangle maps one-to-one onto a cell quad.
// Both the GPU and software rasterizers sample the same atlas data.
package atlas

import (
	"image"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/termgrid"
)

// Config controls atlas geometry and glyph sizing.
type Config struct {
	// FontSize is the logical font size in pixels.
	FontSize float64

	// Density is the device pixel ratio. Glyphs are rasterized at
	// FontSize*Density so they stay crisp on high-DPI displays.
	Density float64

	// Width is the fixed atlas width in pixels.
	Width int

	// InitialHeight is the starting atlas height. The atlas doubles its
	// height as needed up to MaxHeight.
	InitialHeight int

	// MaxHeight bounds atlas growth.
	MaxHeight int

	// Padding is the gap between packed glyph boxes.
	Padding int
}

// DefaultConfig returns the standard atlas configuration.
func DefaultConfig() Config {
	return Config{
		FontSize:      14,
		Density:       1.0,
		Width:         1024,
		InitialHeight: 256,
		MaxHeight:     4096,
		Padding:       1,
	}
}

// Metrics describes the device-pixel cell geometry derived from the font.
type Metrics struct {
	CellWidth  int // advance of one column in device pixels
	CellHeight int // row height in device pixels
	Ascent     int // baseline offset from the cell top in device pixels
}

// GlyphKey identifies a cached glyph. Style variants of the same rune
// occupy distinct atlas slots.
type GlyphKey struct {
	Char   rune
	Bold   bool
	Italic bool
}

// GlyphEntry is the atlas rectangle holding a rasterized glyph. A
// zero-sized entry means the glyph produced no coverage (blank, missing
// from the font, or the atlas is full).
type GlyphEntry struct {
	X, Y int
	W, H int
}

// Empty reports whether the entry holds no pixels.
func (e GlyphEntry) Empty() bool { return e.W == 0 || e.H == 0 }

// Atlas packs rasterized glyphs into a single-channel coverage bitmap.
// It is not safe for concurrent use; all rendering runs on one goroutine.
type Atlas struct {
	cfg   Config
	fonts *FontSet

	shelf   *ShelfAllocator
	entries map[GlyphKey]GlyphEntry

	data   []uint8 // alpha coverage, width*height
	width  int
	height int
	dirty  bool
	full   bool

	metrics Metrics
	faces   map[*faceSource]font.Face
}

// New creates an atlas for the given font set. The zero Config is
// replaced by DefaultConfig values field by field.
func New(fonts *FontSet, cfg Config) (*Atlas, error) {
	def := DefaultConfig()
	if cfg.FontSize <= 0 {
		cfg.FontSize = def.FontSize
	}
	if cfg.Density <= 0 {
		cfg.Density = def.Density
	}
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.InitialHeight <= 0 {
		cfg.InitialHeight = def.InitialHeight
	}
	if cfg.MaxHeight < cfg.InitialHeight {
		cfg.MaxHeight = def.MaxHeight
	}
	if cfg.Padding < 0 {
		cfg.Padding = def.Padding
	}
	if fonts == nil {
		fonts = DefaultFontSet()
	}

	a := &Atlas{
		cfg:    cfg,
		fonts:  fonts,
		width:  cfg.Width,
		height: cfg.InitialHeight,
	}
	if err := a.reset(); err != nil {
		return nil, err
	}
	return a, nil
}

// reset rebuilds faces, metrics and packing state at the current density.
func (a *Atlas) reset() error {
	a.shelf = NewShelfAllocator(a.width, a.height, a.cfg.Padding)
	a.entries = make(map[GlyphKey]GlyphEntry, 256)
	a.data = make([]uint8, a.width*a.height)
	a.faces = make(map[*faceSource]font.Face, 4)
	a.dirty = true
	a.full = false

	face, err := a.face(a.fonts.regular)
	if err != nil {
		return err
	}

	m := face.Metrics()
	adv, ok := face.GlyphAdvance('M')
	if !ok {
		adv = m.Height / 2
	}
	a.metrics = Metrics{
		CellWidth:  ceil26_6(adv),
		CellHeight: ceil26_6(m.Ascent + m.Descent),
		Ascent:     ceil26_6(m.Ascent),
	}
	if a.metrics.CellWidth <= 0 {
		a.metrics.CellWidth = 1
	}
	if a.metrics.CellHeight <= 0 {
		a.metrics.CellHeight = 1
	}
	return nil
}

func ceil26_6(v fixed.Int26_6) int {
	return int(math.Ceil(float64(v) / 64.0))
}

func (a *Atlas) face(src *faceSource) (font.Face, error) {
	if f, ok := a.faces[src]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(src.sfnt, &opentype.FaceOptions{
		Size:    a.cfg.FontSize * a.cfg.Density,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	a.faces[src] = f
	return f, nil
}

// Metrics returns the cell geometry at the current density.
func (a *Atlas) Metrics() Metrics { return a.metrics }

// Size returns the atlas bitmap dimensions.
func (a *Atlas) Size() (w, h int) { return a.width, a.height }

// Data returns the coverage bitmap, row-major, one byte per pixel.
func (a *Atlas) Data() []uint8 { return a.data }

// Dirty reports whether the bitmap changed since the last MarkClean.
// Backends use this to re-upload the atlas texture.
func (a *Atlas) Dirty() bool { return a.dirty }

// MarkClean clears the dirty flag after a backend uploads the bitmap.
func (a *Atlas) MarkClean() { a.dirty = false }

// Density returns the device pixel ratio the atlas was built for.
func (a *Atlas) Density() float64 { return a.cfg.Density }

// Invalidate discards every cached glyph and rebuilds metrics for the
// new density. Previously returned entries become meaningless.
func (a *Atlas) Invalidate(density float64) error {
	if density <= 0 {
		density = 1.0
	}
	a.cfg.Density = density
	a.height = a.cfg.InitialHeight
	return a.reset()
}

// GetGlyph returns the atlas entry for a styled rune, rasterizing it on
// first use. Repeated calls with the same key return the identical entry.
// Failures degrade to a zero-sized entry rather than an error.
func (a *Atlas) GetGlyph(char rune, bold, italic bool) GlyphEntry {
	key := GlyphKey{Char: char, Bold: bold, Italic: italic}
	if e, ok := a.entries[key]; ok {
		return e
	}

	e := a.rasterize(char, bold, italic)
	a.entries[key] = e
	return e
}

// PopulateASCII pre-rasterizes the printable ASCII range in all style
// combinations so the first frame does not pay per-glyph cost.
func (a *Atlas) PopulateASCII() {
	for _, style := range [][2]bool{{false, false}, {true, false}, {false, true}, {true, true}} {
		for c := rune(0x21); c <= 0x7E; c++ {
			a.GetGlyph(c, style[0], style[1])
		}
	}
}

func (a *Atlas) rasterize(char rune, bold, italic bool) GlyphEntry {
	if char == ' ' || char == 0 {
		return GlyphEntry{}
	}
	if !a.fonts.HasGlyph(char) {
		return GlyphEntry{}
	}

	src, syntheticBold := a.fonts.source(bold, italic)
	syntheticBold = syntheticBold && bold
	face, err := a.face(src)
	if err != nil {
		termgrid.Logger().Warn("atlas: face creation failed", "char", string(char), "error", err)
		return GlyphEntry{}
	}

	boxW := a.metrics.CellWidth
	if adv, ok := face.GlyphAdvance(char); ok && ceil26_6(adv) > a.metrics.CellWidth*3/2 {
		boxW = a.metrics.CellWidth * 2
	}
	boxH := a.metrics.CellHeight

	img := image.NewAlpha(image.Rect(0, 0, boxW, boxH))
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, a.metrics.Ascent),
	}
	d.DrawString(string(char))
	if syntheticBold {
		// Double-strike: re-draw shifted one device pixel right.
		d.Dot = fixed.P(1, a.metrics.Ascent)
		d.DrawString(string(char))
	}

	x, y, ok := a.alloc(boxW, boxH)
	if !ok {
		if !a.full {
			a.full = true
			termgrid.Logger().Warn("atlas: full, further glyphs render blank",
				"width", a.width, "height", a.height)
		}
		return GlyphEntry{}
	}

	a.blit(img, x, y)
	a.dirty = true
	return GlyphEntry{X: x, Y: y, W: boxW, H: boxH}
}

// alloc finds space for a glyph box, doubling the atlas height when the
// packer runs out of room. Growth preserves all existing coordinates.
func (a *Atlas) alloc(w, h int) (x, y int, ok bool) {
	x, y, ok = a.shelf.Allocate(w, h)
	for !ok && a.height < a.cfg.MaxHeight {
		newHeight := a.height * 2
		if newHeight > a.cfg.MaxHeight {
			newHeight = a.cfg.MaxHeight
		}
		grown := make([]uint8, a.width*newHeight)
		copy(grown, a.data)
		a.data = grown
		a.height = newHeight
		a.shelf.Grow(newHeight)
		a.dirty = true

		x, y, ok = a.shelf.Allocate(w, h)
	}
	return x, y, ok
}

func (a *Atlas) blit(img *image.Alpha, dstX, dstY int) {
	b := img.Bounds()
	for row := 0; row < b.Dy(); row++ {
		srcOff := row * img.Stride
		dstOff := (dstY+row)*a.width + dstX
		copy(a.data[dstOff:dstOff+b.Dx()], img.Pix[srcOff:srcOff+b.Dx()])
	}
}
