// Package backend selects and drives cell-grid rasterizers.
//
// Rasterizers draw a grid snapshot into an RGBA pixmap. The GPU
// rasterizer lives in the gpu subpackage and registers itself on
// import; the software rasterizer in this package is always available
// and serves as the fallback when GPU initialization fails.
package backend

import (
	"errors"

	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/atlas"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when no rasterizer can be created.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations run before a resize
	// established a non-empty target.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend names.
const (
	BackendGPU      = "gpu"
	BackendSoftware = "software"
)

// Config carries the parameters shared by all rasterizers.
type Config struct {
	// Theme supplies the palette. Zero value means DefaultTheme.
	Theme termgrid.Theme

	// Fonts is the monospace family. Nil means the Go Mono default.
	Fonts *atlas.FontSet

	// FontSize is the logical font size in pixels; 0 means the atlas default.
	FontSize float64

	// Density is the device pixel ratio; 0 means 1.0.
	Density float64

	// Width and Height are the initial target size in device pixels.
	Width, Height int
}

// DefaultConfig returns a Config with the standard theme and fonts.
func DefaultConfig() Config {
	return Config{
		Theme:   termgrid.DefaultTheme(),
		Density: 1.0,
		Width:   800,
		Height:  600,
	}
}

// Frame is the input of one render pass.
type Frame struct {
	// Snapshot is the grid to draw. Nil renders a cleared background.
	Snapshot *termgrid.Snapshot

	// Selection highlights a cell range when Active.
	Selection termgrid.Selection

	// Hover underlines a cell range when Active, used for link hover.
	Hover termgrid.Selection
}

// Rasterizer draws cell grids into a pixmap target.
// Implementations are not safe for concurrent use; all calls must come
// from the render goroutine.
type Rasterizer interface {
	// Name returns the backend identifier (e.g. "software", "gpu").
	Name() string

	// Render draws the frame into the target pixmap.
	Render(frame Frame) error

	// Resize sets the target size in device pixels.
	Resize(width, height int) error

	// SetDensity rebuilds glyphs for a new device pixel ratio.
	SetDensity(density float64) error

	// Metrics returns the current cell geometry.
	Metrics() atlas.Metrics

	// GridSize returns how many rows and columns fit the target.
	GridSize() (rows, cols int)

	// Target returns the rendered pixmap. Contents are valid after a
	// successful Render and until the next Render or Resize.
	Target() *termgrid.Pixmap

	// Close releases rasterizer resources.
	Close()
}
