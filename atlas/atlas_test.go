package atlas

import (
	"testing"

	"golang.org/x/image/font/gofont/gomono"
)

func newTestAtlas(t *testing.T, cfg Config) *Atlas {
	t.Helper()
	a, err := New(DefaultFontSet(), cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return a
}

func TestMetrics(t *testing.T) {
	a := newTestAtlas(t, Config{})

	m := a.Metrics()
	if m.CellWidth <= 0 || m.CellHeight <= 0 {
		t.Fatalf("non-positive cell metrics: %+v", m)
	}
	if m.Ascent <= 0 || m.Ascent > m.CellHeight {
		t.Errorf("Ascent = %d, want in (0, %d]", m.Ascent, m.CellHeight)
	}
}

func TestGetGlyphIdentity(t *testing.T) {
	a := newTestAtlas(t, Config{})

	first := a.GetGlyph('A', false, false)
	second := a.GetGlyph('A', false, false)
	if first != second {
		t.Errorf("repeated GetGlyph returned different entries: %+v vs %+v", first, second)
	}
	if first.Empty() {
		t.Fatalf("GetGlyph('A') returned empty entry")
	}

	bold := a.GetGlyph('A', true, false)
	if bold == first {
		t.Errorf("bold variant shares entry with regular: %+v", bold)
	}
}

func TestGetGlyphBlankAndMissing(t *testing.T) {
	a := newTestAtlas(t, Config{})

	tests := []struct {
		name string
		char rune
	}{
		{"space", ' '},
		{"nul", 0},
		{"unmapped", '\U000E0000'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if e := a.GetGlyph(tt.char, false, false); !e.Empty() {
				t.Errorf("GetGlyph(%q) = %+v, want empty", tt.char, e)
			}
		})
	}
}

func TestGlyphCoverageWritten(t *testing.T) {
	a := newTestAtlas(t, Config{})

	e := a.GetGlyph('#', false, false)
	if e.Empty() {
		t.Fatal("no entry for '#'")
	}
	if !a.Dirty() {
		t.Error("atlas not dirty after rasterization")
	}

	w, _ := a.Size()
	sum := 0
	for row := 0; row < e.H; row++ {
		for col := 0; col < e.W; col++ {
			sum += int(a.Data()[(e.Y+row)*w+e.X+col])
		}
	}
	if sum == 0 {
		t.Error("glyph box contains no coverage")
	}

	a.MarkClean()
	if a.Dirty() {
		t.Error("Dirty() true after MarkClean")
	}
}

func TestNewShelfStartsWithoutCorruption(t *testing.T) {
	// A narrow atlas forces a new shelf after a handful of glyphs.
	a := newTestAtlas(t, Config{Width: 64, InitialHeight: 256, MaxHeight: 256})

	type placed struct {
		char  rune
		entry GlyphEntry
	}
	var first []placed
	for c := rune('A'); c <= 'Z'; c++ {
		e := a.GetGlyph(c, false, false)
		if e.Empty() {
			t.Fatalf("atlas full too early at %q", c)
		}
		first = append(first, placed{c, e})
	}
	if a.shelf.ShelfCount() < 2 {
		t.Fatalf("expected multiple shelves, got %d", a.shelf.ShelfCount())
	}

	for _, p := range first {
		if got := a.GetGlyph(p.char, false, false); got != p.entry {
			t.Errorf("entry for %q moved: %+v -> %+v", p.char, p.entry, got)
		}
	}
}

func TestGrowthPreservesCoordinates(t *testing.T) {
	a := newTestAtlas(t, Config{Width: 64, InitialHeight: 32, MaxHeight: 1024})

	anchor := a.GetGlyph('W', false, false)
	if anchor.Empty() {
		t.Fatal("no entry for anchor glyph")
	}
	_, h0 := a.Size()

	// Fill until the atlas must grow at least once.
	for c := rune(0x21); c <= 0x7E; c++ {
		a.GetGlyph(c, false, false)
		a.GetGlyph(c, true, false)
	}
	_, h1 := a.Size()
	if h1 <= h0 {
		t.Fatalf("atlas did not grow: height %d -> %d", h0, h1)
	}

	if got := a.GetGlyph('W', false, false); got != anchor {
		t.Errorf("growth moved anchor entry: %+v -> %+v", anchor, got)
	}
}

func TestAtlasFullDegradesToEmpty(t *testing.T) {
	a := newTestAtlas(t, Config{Width: 32, InitialHeight: 32, MaxHeight: 32})

	sawEmpty := false
	for c := rune(0x21); c <= 0x7E; c++ {
		if a.GetGlyph(c, false, false).Empty() {
			sawEmpty = true
			break
		}
	}
	if !sawEmpty {
		t.Error("expected empty entries once the atlas filled")
	}
}

func TestInvalidateRescalesMetrics(t *testing.T) {
	a := newTestAtlas(t, Config{})

	low := a.Metrics()
	e := a.GetGlyph('A', false, false)
	if e.Empty() {
		t.Fatal("no entry before invalidation")
	}

	if err := a.Invalidate(2.0); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	high := a.Metrics()
	if high.CellWidth <= low.CellWidth || high.CellHeight <= low.CellHeight {
		t.Errorf("metrics did not scale up: %+v -> %+v", low, high)
	}
	if !a.Dirty() {
		t.Error("atlas not dirty after Invalidate")
	}

	e2 := a.GetGlyph('A', false, false)
	if e2.Empty() {
		t.Fatal("no entry after invalidation")
	}
	if e2.W <= e.W {
		t.Errorf("glyph box did not scale with density: %d -> %d", e.W, e2.W)
	}
}

func TestFontSetStyleFallback(t *testing.T) {
	fs, err := NewFontSet(FontData{Regular: gomono.TTF})
	if err != nil {
		t.Fatalf("NewFontSet() error: %v", err)
	}

	tests := []struct {
		name          string
		bold, italic  bool
		wantSynthetic bool
	}{
		{"regular", false, false, false},
		{"bold falls back with double strike", true, false, true},
		{"italic falls back to regular", false, true, false},
		{"bold italic falls back with double strike", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, synthetic := fs.source(tt.bold, tt.italic)
			if src != fs.regular {
				t.Error("fallback did not resolve to regular face")
			}
			if synthetic != tt.wantSynthetic {
				t.Errorf("synthetic = %v, want %v", synthetic, tt.wantSynthetic)
			}
		})
	}
}

func TestFontSetMetadata(t *testing.T) {
	fs := DefaultFontSet()
	if fs.Family() == "" {
		t.Error("Family() empty for Go Mono")
	}
	if !fs.HasGlyph('A') {
		t.Error("HasGlyph('A') = false")
	}
	if fs.HasGlyph('\U000E0000') {
		t.Error("HasGlyph(unmapped) = true")
	}
}

func TestPopulateASCIIPrecachesAllStyles(t *testing.T) {
	a := newTestAtlas(t, Config{})

	a.PopulateASCII()

	for _, style := range [][2]bool{{false, false}, {true, false}, {false, true}, {true, true}} {
		for c := rune(0x21); c <= 0x7E; c++ {
			if _, ok := a.entries[GlyphKey{Char: c, Bold: style[0], Italic: style[1]}]; !ok {
				t.Fatalf("rune %q bold=%v italic=%v not cached after PopulateASCII",
					c, style[0], style[1])
			}
		}
	}
}
