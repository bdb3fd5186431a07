// Package view composes a viewport and a rasterizer into a paintable
// terminal surface.
//
// The view owns paint coalescing: any number of updates arriving within
// one refresh interval collapse into a single paint on the next
// scheduler tick, and a paint in flight is never re-entered. All entry
// points must be called from the owner's event goroutine.
package view

import (
	"context"
	"time"

	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/backend"
	"github.com/gogpu/termgrid/viewport"
)

// Scheduler defers a callback to the next display refresh tick. The
// callback must run on the same goroutine that drives the view.
type Scheduler interface {
	Schedule(fn func())
}

// FuncScheduler adapts a plain function to the Scheduler interface.
type FuncScheduler func(fn func())

// Schedule implements Scheduler.
func (f FuncScheduler) Schedule(fn func()) { f(fn) }

// Config holds view construction parameters.
type Config struct {
	// Viewport is the scrollback policy passed through to the viewport.
	Viewport viewport.Config

	// Width and Height are the initial layout size in logical pixels.
	Width, Height int

	// Density is the initial device pixel ratio; 0 means 1.0.
	Density float64

	// FetchTimeout bounds snapshot fetches triggered by the view.
	// 0 means 5 seconds.
	FetchTimeout time.Duration
}

// View is a terminal surface: a viewport tracking scrollback plus a
// rasterizer producing frames. Not safe for concurrent use.
type View struct {
	vp    *viewport.Viewport
	auth  viewport.Authority
	ras   backend.Rasterizer
	sched Scheduler

	width, height int
	density       float64
	fetchTimeout  time.Duration

	paintPending bool
	painting     bool

	hover     termgrid.Selection
	lastTitle string

	onScroll      func(offset int)
	onScrollTo    func(offset int)
	onTitleChange func(title string)
	onFrame       func(p *termgrid.Pixmap)
}

// New creates a view. The rasterizer is typically obtained from
// backend.NewDefault; the scheduler is the shell's refresh-tick hook.
func New(auth viewport.Authority, ras backend.Rasterizer, sched Scheduler, cfg Config) *View {
	if cfg.Density <= 0 {
		cfg.Density = 1.0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}

	v := &View{
		vp:           viewport.New(auth, cfg.Viewport),
		auth:         auth,
		ras:          ras,
		sched:        sched,
		width:        cfg.Width,
		height:       cfg.Height,
		density:      cfg.Density,
		fetchTimeout: cfg.FetchTimeout,
	}
	v.vp.SetSnapshotRequester(v.fetchSnapshot)
	return v
}

// Viewport exposes the underlying state machine.
func (v *View) Viewport() *viewport.Viewport { return v.vp }

// Rasterizer exposes the backing rasterizer.
func (v *View) Rasterizer() backend.Rasterizer { return v.ras }

// SetOnScroll installs a callback fired with the new offset after every
// relative scroll.
func (v *View) SetOnScroll(cb func(offset int)) { v.onScroll = cb }

// SetOnScrollTo installs a callback fired with the new offset after
// every absolute scroll.
func (v *View) SetOnScrollTo(cb func(offset int)) { v.onScrollTo = cb }

// SetOnTitleChange installs a callback fired when the terminal title
// changes between painted snapshots.
func (v *View) SetOnTitleChange(cb func(title string)) { v.onTitleChange = cb }

// SetOnFrame installs a callback receiving the rendered pixmap after
// each paint. The pixmap is valid until the next paint.
func (v *View) SetOnFrame(cb func(p *termgrid.Pixmap)) { v.onFrame = cb }

// Render installs a snapshot fetched out-of-band and schedules a paint.
func (v *View) Render(snap *termgrid.Snapshot) {
	if v.vp.ApplySnapshot(snap, v.vp.Sequence()) {
		v.schedulePaint()
	}
}

// ApplyDiff folds a pushed diff in and schedules a paint if the visible
// state changed.
func (v *View) ApplyDiff(d *termgrid.Diff) {
	if v.vp.ApplyDiff(d) {
		v.schedulePaint()
	}
}

// UpdateSize recomputes surface pixel dimensions from the layout size
// and density, returning whether anything changed. It runs synchronously
// so a view becoming visible can resize before its first paint instead
// of showing one stretched frame.
func (v *View) UpdateSize(width, height int, density float64) bool {
	if density <= 0 {
		density = 1.0
	}

	changed := false
	if density != v.density {
		v.density = density
		if err := v.ras.SetDensity(density); err != nil {
			termgrid.Logger().Warn("view: density change failed", "error", err)
		}
		changed = true
	}
	if width != v.width || height != v.height || changed {
		v.width, v.height = width, height
		pw := int(float64(width) * v.density)
		ph := int(float64(height) * v.density)
		if err := v.ras.Resize(pw, ph); err != nil {
			termgrid.Logger().Warn("view: resize failed", "error", err)
		} else {
			changed = true
		}
	}

	if changed {
		v.schedulePaint()
	}
	return changed
}

// GridSize returns the rows and columns that fit the current surface.
func (v *View) GridSize() (rows, cols int) { return v.ras.GridSize() }

// ScrollBy scrolls by a line delta and schedules a paint.
func (v *View) ScrollBy(deltaLines int) {
	if v.vp.ScrollBy(deltaLines) {
		if v.onScroll != nil {
			v.onScroll(v.vp.Offset())
		}
		v.schedulePaint()
	}
}

// ScrollTo scrolls to an absolute offset and schedules a paint.
func (v *View) ScrollTo(offset int) {
	if v.vp.ScrollTo(offset) {
		if v.onScrollTo != nil {
			v.onScrollTo(v.vp.Offset())
		}
		v.schedulePaint()
	}
}

// ScrollToBottom snaps the view live.
func (v *View) ScrollToBottom() {
	if v.vp.SnapToBottom() {
		if v.onScrollTo != nil {
			v.onScrollTo(0)
		}
		v.schedulePaint()
	}
}

// ScrollbackOffset returns the current distance from live in lines.
func (v *View) ScrollbackOffset() int { return v.vp.Offset() }

// OnKeyboardInput forwards a keystroke to the viewport policy.
func (v *View) OnKeyboardInput() {
	if v.vp.OnKeyboardInput() {
		v.schedulePaint()
	}
}

// StartSelection begins a selection drag at a cell position.
func (v *View) StartSelection(row, col int) {
	v.vp.StartSelection(row, col)
	v.schedulePaint()
}

// UpdateSelection extends an active selection drag.
func (v *View) UpdateSelection(row, col int) {
	v.vp.UpdateSelection(row, col)
	v.schedulePaint()
}

// EndSelection finishes a selection drag, replaying any update frozen
// during it.
func (v *View) EndSelection() {
	if v.vp.EndSelection() {
		v.schedulePaint()
	}
}

// HasSelection reports whether a selection exists.
func (v *View) HasSelection() bool { return v.vp.HasSelection() }

// Selection returns the current selection.
func (v *View) Selection() termgrid.Selection { return v.vp.Selection() }

// ClearSelection drops the selection and repaints.
func (v *View) ClearSelection() {
	if v.vp.HasSelection() {
		v.vp.ClearSelection()
		v.schedulePaint()
	}
}

// CopySelection returns the selected text, or "" when nothing is
// selected or the upstream call fails.
func (v *View) CopySelection(ctx context.Context) string {
	return v.vp.SelectedText(ctx)
}

// SetHover marks a cell range as link-hovered for underline rendering.
func (v *View) SetHover(hover termgrid.Selection) {
	if v.hover != hover {
		v.hover = hover
		v.schedulePaint()
	}
}

// StartScrollbarDrag forwards to the viewport.
func (v *View) StartScrollbarDrag() { v.vp.StartScrollbarDrag() }

// EndScrollbarDrag forwards to the viewport.
func (v *View) EndScrollbarDrag() { v.vp.EndScrollbarDrag() }

// schedulePaint coalesces repaint requests into one per scheduler tick.
func (v *View) schedulePaint() {
	if v.paintPending {
		return
	}
	v.paintPending = true
	v.sched.Schedule(v.paint)
}

func (v *View) paint() {
	v.paintPending = false
	if v.painting {
		return
	}
	v.painting = true
	defer func() { v.painting = false }()

	snap := v.vp.Snapshot()
	frame := backend.Frame{
		Snapshot:  snap,
		Selection: v.vp.Selection(),
		Hover:     v.hover,
	}
	if err := v.ras.Render(frame); err != nil {
		termgrid.Logger().Warn("view: render failed, keeping last frame", "error", err)
		return
	}

	if snap != nil && snap.Title != v.lastTitle {
		v.lastTitle = snap.Title
		if v.onTitleChange != nil {
			v.onTitleChange(snap.Title)
		}
	}
	if v.onFrame != nil {
		v.onFrame(v.ras.Target())
	}
}

// fetchSnapshot runs an async full-snapshot fetch with the sequence
// guard. The result is delivered back through the scheduler so it lands
// on the view's goroutine.
func (v *View) fetchSnapshot() {
	seq := v.vp.Sequence()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.fetchTimeout)
		defer cancel()

		snap, err := v.auth.Snapshot(ctx)
		if err != nil {
			termgrid.Logger().Warn("view: snapshot fetch failed", "error", err)
			return
		}
		v.sched.Schedule(func() {
			if v.vp.ApplySnapshot(snap, seq) {
				v.schedulePaint()
			}
		})
	}()
}
