package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/termgrid"
)

// uniformSize is the byte size of the cell grid uniform buffer.
// Layout: grid (vec4<u32>) + cursor (vec4<u32>) + target (vec4<f32>) +
// four vec4<f32> colors = 7 * 16 = 112 bytes.
const uniformSize = 112

// frameUniforms holds the per-frame shader parameters.
type frameUniforms struct {
	cols, rows           uint32
	cellWidth            uint32
	cellHeight           uint32
	cursorCol, cursorRow uint32
	cursorVisible        bool
	underlineThickness   uint32
	targetW, targetH     float32
	cursorColor          termgrid.PackedColor
	accentColor          termgrid.PackedColor
	selectionColor       termgrid.PackedColor
	backgroundColor      termgrid.PackedColor
}

// pack serializes the uniforms into the WGSL std140-compatible layout.
func (u *frameUniforms) pack() []byte {
	buf := make([]byte, uniformSize)

	binary.LittleEndian.PutUint32(buf[0:], u.cols)
	binary.LittleEndian.PutUint32(buf[4:], u.rows)
	binary.LittleEndian.PutUint32(buf[8:], u.cellWidth)
	binary.LittleEndian.PutUint32(buf[12:], u.cellHeight)

	binary.LittleEndian.PutUint32(buf[16:], u.cursorCol)
	binary.LittleEndian.PutUint32(buf[20:], u.cursorRow)
	var visible uint32
	if u.cursorVisible {
		visible = 1
	}
	binary.LittleEndian.PutUint32(buf[24:], visible)
	binary.LittleEndian.PutUint32(buf[28:], u.underlineThickness)

	binary.LittleEndian.PutUint32(buf[32:], math.Float32bits(u.targetW))
	binary.LittleEndian.PutUint32(buf[36:], math.Float32bits(u.targetH))

	packColorVec4(buf[48:], u.cursorColor)
	packColorVec4(buf[64:], u.accentColor)
	packColorVec4(buf[80:], u.selectionColor)
	packColorVec4(buf[96:], u.backgroundColor)
	return buf
}

func packColorVec4(dst []byte, c termgrid.PackedColor) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(float32(c.R())/255))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(float32(c.G())/255))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(float32(c.B())/255))
	binary.LittleEndian.PutUint32(dst[12:], math.Float32bits(float32(c.A())/255))
}
