package termgrid

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// Pixmap is the rectangular RGBA pixel buffer the software rasterizer paints
// into and the GPU rasterizer reads back into. Data is tightly packed,
// 4 bytes per pixel, RGBA order.
type Pixmap struct {
	width  int
	height int
	data   []uint8
}

// NewPixmap creates a pixmap with the given dimensions.
func NewPixmap(width, height int) *Pixmap {
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// Width returns the width in pixels.
func (p *Pixmap) Width() int { return p.width }

// Height returns the height in pixels.
func (p *Pixmap) Height() int { return p.height }

// Data returns the raw RGBA pixel data.
func (p *Pixmap) Data() []uint8 { return p.data }

// Resize reallocates the buffer for new dimensions. Contents are discarded;
// the caller repaints the whole surface after a resize anyway.
func (p *Pixmap) Resize(width, height int) {
	if p.width == width && p.height == height {
		return
	}
	p.width = width
	p.height = height
	p.data = make([]uint8, width*height*4)
}

// SetPixel writes one pixel, ignoring out-of-bounds coordinates.
func (p *Pixmap) SetPixel(x, y int, c PackedColor) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	i := (y*p.width + x) * 4
	p.data[i+0] = c.R()
	p.data[i+1] = c.G()
	p.data[i+2] = c.B()
	p.data[i+3] = c.A()
}

// GetPixel reads one pixel; out-of-bounds reads return transparent black.
func (p *Pixmap) GetPixel(x, y int) PackedColor {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return 0
	}
	i := (y*p.width + x) * 4
	return PackRGBA(p.data[i+0], p.data[i+1], p.data[i+2], p.data[i+3])
}

// Clear fills the whole pixmap with c.
func (p *Pixmap) Clear(c PackedColor) {
	r, g, b, a := c.R(), c.G(), c.B(), c.A()
	for i := 0; i < len(p.data); i += 4 {
		p.data[i+0] = r
		p.data[i+1] = g
		p.data[i+2] = b
		p.data[i+3] = a
	}
}

// FillRect fills the rectangle [x, x+w) × [y, y+h) with c, clipped to the
// pixmap bounds.
func (p *Pixmap) FillRect(x, y, w, h int, c PackedColor) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, p.width), min(y+h, p.height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	r, g, b, a := c.R(), c.G(), c.B(), c.A()
	for yy := y0; yy < y1; yy++ {
		i := (yy*p.width + x0) * 4
		for xx := x0; xx < x1; xx++ {
			p.data[i+0] = r
			p.data[i+1] = g
			p.data[i+2] = b
			p.data[i+3] = a
			i += 4
		}
	}
}

// BlendPixel composites c over the existing pixel using cov (0-255) as
// coverage, scaled by c's own alpha. This is the glyph compositing primitive:
// the atlas stores coverage masks, so blending happens with straight alpha.
func (p *Pixmap) BlendPixel(x, y int, c PackedColor, cov uint8) {
	if cov == 0 || x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	alpha := uint32(cov) * uint32(c.A()) / 255
	if alpha == 0 {
		return
	}
	i := (y*p.width + x) * 4
	inv := 255 - alpha
	p.data[i+0] = uint8((uint32(c.R())*alpha + uint32(p.data[i+0])*inv) / 255)
	p.data[i+1] = uint8((uint32(c.G())*alpha + uint32(p.data[i+1])*inv) / 255)
	p.data[i+2] = uint8((uint32(c.B())*alpha + uint32(p.data[i+2])*inv) / 255)
	if ea := uint32(p.data[i+3]) + alpha; ea > 255 {
		p.data[i+3] = 255
	} else {
		p.data[i+3] = uint8(ea)
	}
}

// ToImage converts the pixmap to an image.RGBA copy.
func (p *Pixmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	copy(img.Pix, p.data)
	return img
}

// SavePNG writes the pixmap to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is caller-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return png.Encode(f, p.ToImage())
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	c := p.GetPixel(x, y)
	return color.RGBA{R: c.R(), G: c.G(), B: c.B(), A: c.A()}
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return color.RGBAModel
}
