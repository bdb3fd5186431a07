package termgrid

import "testing"

func TestParseHexColors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PackedColor
	}{
		{"long form", "#cd3131", PackRGB(0xcd, 0x31, 0x31)},
		{"long form white", "#ffffff", White},
		{"long form black", "#000000", Black},
		{"short form", "#f0a", PackRGB(0xff, 0x00, 0xaa)},
		{"short form white", "#fff", White},
		{"uppercase", "#CD3131", PackRGB(0xcd, 0x31, 0x31)},
	}

	cc := NewColorCache()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cc.Parse(tt.input); got != tt.want {
				t.Errorf("Parse(%q) = %08x, want %08x", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRGBFunc(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PackedColor
	}{
		{"plain", "rgb(205,49,49)", PackRGB(205, 49, 49)},
		{"spaces", "rgb(205, 49, 49)", PackRGB(205, 49, 49)},
		{"clamped high", "rgb(300,0,0)", PackRGB(255, 0, 0)},
		{"clamped low", "rgb(-5,0,0)", PackRGB(0, 0, 0)},
	}

	cc := NewColorCache()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cc.Parse(tt.input); got != tt.want {
				t.Errorf("Parse(%q) = %08x, want %08x", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMalformedFallsBackToWhite(t *testing.T) {
	inputs := []string{
		"", "default", "#12", "#12345", "#gggggg",
		"rgb(1,2)", "rgb(1,2,3,4)", "rgb(a,b,c)", "hsl(0,0,0)", "red",
	}

	cc := NewColorCache()
	for _, in := range inputs {
		if got := cc.Parse(in); got != White {
			t.Errorf("Parse(%q) = %08x, want opaque white", in, got)
		}
	}
}

func TestParseMemoizes(t *testing.T) {
	cc := NewColorCache()
	cc.Parse("#cd3131")
	cc.Parse("#cd3131")
	cc.Parse("#cd3131")
	if cc.Len() != 1 {
		t.Errorf("cache has %d entries, want 1", cc.Len())
	}
	cc.Parse("#ffffff")
	if cc.Len() != 2 {
		t.Errorf("cache has %d entries, want 2", cc.Len())
	}
}

func TestDim(t *testing.T) {
	// Each channel of white dims to round(255 * 0.67) = 171.
	got := Dim(White)
	want := PackRGBA(171, 171, 171, 0xFF)
	if got != want {
		t.Errorf("Dim(white) = %08x, want %08x", got, want)
	}
}

func TestDimPreservesAlpha(t *testing.T) {
	c := PackRGBA(100, 200, 50, 0x80)
	got := Dim(c)
	if got.A() != 0x80 {
		t.Errorf("Dim alpha = %02x, want 80", got.A())
	}
	if got.R() != 67 || got.G() != 134 || got.B() != 34 {
		t.Errorf("Dim channels = (%d,%d,%d), want (67,134,34)", got.R(), got.G(), got.B())
	}
}

func TestPackedColorChannels(t *testing.T) {
	c := PackRGBA(0x12, 0x34, 0x56, 0x78)
	if c != 0x12345678 {
		t.Fatalf("PackRGBA = %08x, want 12345678", uint32(c))
	}
	if c.R() != 0x12 || c.G() != 0x34 || c.B() != 0x56 || c.A() != 0x78 {
		t.Errorf("channel accessors = (%02x,%02x,%02x,%02x)", c.R(), c.G(), c.B(), c.A())
	}
}
