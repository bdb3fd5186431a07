package atlas

import (
	"bytes"
	"fmt"

	tfont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// FontData holds raw TTF/OTF bytes for the four style variants of a
// monospace family. Only Regular is required; missing variants fall back
// to Regular at render time (bold via double-strike, italic via regular).
type FontData struct {
	Regular    []byte
	Bold       []byte
	Italic     []byte
	BoldItalic []byte
}

// faceSource is one parsed style variant.
type faceSource struct {
	sfnt *sfnt.Font  // outline data for rasterization
	meta *tfont.Face // cmap and name tables
}

// FontSet is a parsed monospace font family. It owns the style fallback
// chain used by the atlas when a variant is missing.
type FontSet struct {
	regular    *faceSource
	bold       *faceSource
	italic     *faceSource
	boldItalic *faceSource
	family     string
}

// NewFontSet parses the provided font data. Regular must parse; other
// variants are optional and are dropped with an error only if the bytes
// are present but malformed.
func NewFontSet(data FontData) (*FontSet, error) {
	if len(data.Regular) == 0 {
		return nil, fmt.Errorf("atlas: regular font data is required")
	}

	regular, err := parseFaceSource(data.Regular)
	if err != nil {
		return nil, fmt.Errorf("atlas: parse regular: %w", err)
	}

	fs := &FontSet{regular: regular}
	if desc := regular.meta.Describe(); desc.Family != "" {
		fs.family = desc.Family
	}

	if len(data.Bold) > 0 {
		if fs.bold, err = parseFaceSource(data.Bold); err != nil {
			return nil, fmt.Errorf("atlas: parse bold: %w", err)
		}
	}
	if len(data.Italic) > 0 {
		if fs.italic, err = parseFaceSource(data.Italic); err != nil {
			return nil, fmt.Errorf("atlas: parse italic: %w", err)
		}
	}
	if len(data.BoldItalic) > 0 {
		if fs.boldItalic, err = parseFaceSource(data.BoldItalic); err != nil {
			return nil, fmt.Errorf("atlas: parse bold italic: %w", err)
		}
	}

	return fs, nil
}

// DefaultFontSet returns a FontSet backed by the Go Mono family.
func DefaultFontSet() *FontSet {
	fs, err := NewFontSet(FontData{
		Regular:    gomono.TTF,
		Bold:       gomonobold.TTF,
		Italic:     gomonoitalic.TTF,
		BoldItalic: gomonobolditalic.TTF,
	})
	if err != nil {
		// The embedded Go fonts always parse.
		panic(err)
	}
	return fs
}

func parseFaceSource(data []byte) (*faceSource, error) {
	sf, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	meta, err := tfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &faceSource{sfnt: sf, meta: meta}, nil
}

// Family returns the family name from the regular face, or "" if the
// font carries no name table.
func (fs *FontSet) Family() string {
	return fs.family
}

// HasGlyph reports whether the regular face maps the rune to a glyph.
func (fs *FontSet) HasGlyph(r rune) bool {
	_, ok := fs.regular.meta.NominalGlyph(r)
	return ok
}

// source returns the best face for the requested style, along with
// whether bold needs to be synthesized because no bold variant exists.
func (fs *FontSet) source(bold, italic bool) (src *faceSource, syntheticBold bool) {
	switch {
	case bold && italic:
		if fs.boldItalic != nil {
			return fs.boldItalic, false
		}
		if fs.italic != nil {
			return fs.italic, true
		}
		if fs.bold != nil {
			return fs.bold, false
		}
		return fs.regular, true
	case bold:
		if fs.bold != nil {
			return fs.bold, false
		}
		return fs.regular, true
	case italic:
		if fs.italic != nil {
			return fs.italic, false
		}
		return fs.regular, false
	default:
		return fs.regular, false
	}
}
