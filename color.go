package termgrid

import (
	"math"
	"strconv"
	"strings"
)

// PackedColor is a 32-bit RGBA color laid out 0xRRGGBBAA.
// This is the color representation consumed by the cell encoder and both
// rasterizer backends; one packed word per channel group keeps cell records
// compact and GPU-friendly.
type PackedColor uint32

// PackRGBA packs four 8-bit channels into a PackedColor.
func PackRGBA(r, g, b, a uint8) PackedColor {
	return PackedColor(r)<<24 | PackedColor(g)<<16 | PackedColor(b)<<8 | PackedColor(a)
}

// PackRGB packs three 8-bit channels into an opaque PackedColor.
func PackRGB(r, g, b uint8) PackedColor {
	return PackRGBA(r, g, b, 0xFF)
}

// R returns the red channel.
func (c PackedColor) R() uint8 { return uint8(c >> 24) }

// G returns the green channel.
func (c PackedColor) G() uint8 { return uint8(c >> 16) }

// B returns the blue channel.
func (c PackedColor) B() uint8 { return uint8(c >> 8) }

// A returns the alpha channel.
func (c PackedColor) A() uint8 { return uint8(c) }

// Common colors.
const (
	// White is the fallback for unparseable color strings. A wrong-but-visible
	// glyph beats an invisible one when the authority sends garbage.
	White PackedColor = 0xFFFFFFFF
	Black PackedColor = 0x000000FF
)

// dimFactor is the channel multiplier applied to dimmed text.
const dimFactor = 0.67

// Dim returns c with each RGB channel multiplied by dimFactor.
// Alpha is preserved. Pure function; no cache involvement.
func Dim(c PackedColor) PackedColor {
	r := uint8(math.Round(float64(c.R()) * dimFactor))
	g := uint8(math.Round(float64(c.G()) * dimFactor))
	b := uint8(math.Round(float64(c.B()) * dimFactor))
	return PackRGBA(r, g, b, c.A())
}

// ColorCache parses color strings into packed RGBA values and memoizes the
// result by exact input string. Terminal output repeats a small set of color
// strings thousands of times per frame, so the memo hit rate is near 100%.
//
// ColorCache is owned by the single render goroutine and is not safe for
// concurrent use.
type ColorCache struct {
	entries map[string]PackedColor
}

// NewColorCache creates an empty color cache.
func NewColorCache() *ColorCache {
	return &ColorCache{entries: make(map[string]PackedColor)}
}

// Parse converts a color string to a PackedColor.
// Accepted forms: "#rgb", "#rrggbb", and "rgb(r, g, b)".
// Anything else returns opaque white; malformed input from the authority is
// expected during races and must degrade visibly rather than error.
func (cc *ColorCache) Parse(s string) PackedColor {
	if c, ok := cc.entries[s]; ok {
		return c
	}
	c := parseColor(s)
	cc.entries[s] = c
	return c
}

// Len returns the number of memoized entries.
func (cc *ColorCache) Len() int { return len(cc.entries) }

// parseColor does the actual conversion. Split from Parse so the memo hit
// path stays trivially inlineable.
func parseColor(s string) PackedColor {
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s[1:])
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseRGBFunc(s[4 : len(s)-1])
	default:
		return White
	}
}

// parseHexColor parses "rgb" or "rrggbb" (no leading '#').
func parseHexColor(hex string) PackedColor {
	var r, g, b uint32
	switch len(hex) {
	case 3:
		if !parseHexByte(hex[0:1], &r) || !parseHexByte(hex[1:2], &g) || !parseHexByte(hex[2:3], &b) {
			return White
		}
		r, g, b = r*17, g*17, b*17
	case 6:
		if !parseHexByte(hex[0:2], &r) || !parseHexByte(hex[2:4], &g) || !parseHexByte(hex[4:6], &b) {
			return White
		}
	default:
		return White
	}
	return PackRGB(uint8(r), uint8(g), uint8(b))
}

// parseHexByte parses one or two hex digits into val.
func parseHexByte(s string, val *uint32) bool {
	*val = 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		*val *= 16
		switch {
		case '0' <= c && c <= '9':
			*val += uint32(c - '0')
		case 'a' <= c && c <= 'f':
			*val += uint32(c - 'a' + 10)
		case 'A' <= c && c <= 'F':
			*val += uint32(c - 'A' + 10)
		default:
			return false
		}
	}
	return true
}

// parseRGBFunc parses the inside of "rgb(...)": three comma-separated
// decimal components, each clamped to [0, 255].
func parseRGBFunc(body string) PackedColor {
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return White
	}
	var ch [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return White
		}
		if n < 0 {
			n = 0
		}
		if n > 255 {
			n = 255
		}
		ch[i] = uint8(n)
	}
	return PackRGB(ch[0], ch[1], ch[2])
}
