package gpu

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/encode"
)

func TestCellGridShaderSource(t *testing.T) {
	if cellGridShaderSource == "" {
		t.Fatal("embedded shader source is empty")
	}

	for _, want := range []string{
		"fn vs_main",
		"fn fs_main",
		"@group(0) @binding(0)",
		"@group(0) @binding(1)",
		"@group(0) @binding(2)",
		"texture_2d<u32>",
		"instance_index",
	} {
		if !strings.Contains(cellGridShaderSource, want) {
			t.Errorf("shader source missing %q", want)
		}
	}
}

func TestCellGridShaderFlagMirror(t *testing.T) {
	// The shader declares its own copies of the flag bits; they must
	// stay in lockstep with the encoder's layout.
	mirrors := []struct {
		decl string
		bit  uint32
	}{
		{"const FLAG_UNDERLINE: u32 = 4u;", encode.FlagUnderline},
		{"const FLAG_WIDE: u32 = 32u;", encode.FlagWide},
		{"const FLAG_CONTINUATION: u32 = 64u;", encode.FlagWideContinuation},
		{"const FLAG_SELECTED: u32 = 128u;", encode.FlagSelected},
	}
	for _, m := range mirrors {
		if !strings.Contains(cellGridShaderSource, m.decl) {
			t.Errorf("shader source missing %q", m.decl)
		}
		want := m.decl[strings.Index(m.decl, "= ")+2 : strings.Index(m.decl, "u;")]
		if got := strconv.FormatUint(uint64(m.bit), 10); got != want {
			t.Errorf("encode bit %s does not match shader declaration %q", got, m.decl)
		}
	}
}

func TestCellGridShaderContinuationKeepsOwnSelection(t *testing.T) {
	// A continuation cell substitutes its left neighbor's record but
	// selection membership must remain per-cell.
	if !strings.Contains(cellGridShaderSource, "(left.a & ~FLAG_SELECTED) | own_selected") {
		t.Error("continuation record substitution does not preserve the cell's own selection bit")
	}
}

func TestCellGridShaderUnderlineAtCellBottom(t *testing.T) {
	// Underlines occupy the bottom device pixels of the cell, with the
	// band height carried in the uniform so it matches the software
	// renderer at every density.
	if !strings.Contains(cellGridShaderSource, "in.box_pos.y >= f32(u.grid.w) - f32(u.cursor.w)") {
		t.Error("underline band is not anchored to the cell bottom with uniform thickness")
	}
}

func TestCellGridShaderCompiles(t *testing.T) {
	spirv, err := compileShaderToSPIRV(cellGridShaderSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(spirv) == 0 {
		t.Fatal("empty SPIR-V output")
	}
	// SPIR-V magic number.
	if spirv[0] != 0x07230203 {
		t.Errorf("bad SPIR-V magic: %08x", spirv[0])
	}
}

func TestUniformPack(t *testing.T) {
	u := frameUniforms{
		cols: 80, rows: 24,
		cellWidth: 9, cellHeight: 18,
		cursorCol: 5, cursorRow: 7,
		cursorVisible:      true,
		underlineThickness: 2,
		targetW:            720, targetH: 432,
		cursorColor:     termgrid.PackRGB(255, 255, 255),
		accentColor:     termgrid.PackRGB(0, 0, 0),
		selectionColor:  termgrid.PackRGBA(38, 79, 120, 255),
		backgroundColor: termgrid.PackRGB(30, 30, 30),
	}
	buf := u.pack()

	if len(buf) != uniformSize {
		t.Fatalf("len = %d, want %d", len(buf), uniformSize)
	}

	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }
	f32 := func(off int) float32 { return math.Float32frombits(u32(off)) }

	if u32(0) != 80 || u32(4) != 24 || u32(8) != 9 || u32(12) != 18 {
		t.Errorf("grid vec4 wrong: %d %d %d %d", u32(0), u32(4), u32(8), u32(12))
	}
	if u32(16) != 5 || u32(20) != 7 || u32(24) != 1 || u32(28) != 2 {
		t.Errorf("cursor vec4 wrong: %d %d %d %d", u32(16), u32(20), u32(24), u32(28))
	}
	if f32(32) != 720 || f32(36) != 432 {
		t.Errorf("target size wrong: %f %f", f32(32), f32(36))
	}
	if f32(48) != 1.0 {
		t.Errorf("cursor color r = %f, want 1", f32(48))
	}
	if got := f32(80); math.Abs(float64(got)-38.0/255) > 1e-6 {
		t.Errorf("selection color r = %f", got)
	}
	if f32(108) != 1.0 {
		t.Errorf("background alpha = %f, want 1", f32(108))
	}
}

func TestUniformPackCursorHidden(t *testing.T) {
	u := frameUniforms{cols: 1, rows: 1}
	buf := u.pack()
	if binary.LittleEndian.Uint32(buf[24:]) != 0 {
		t.Error("hidden cursor packed as visible")
	}
}
