// Package viewport tracks a terminal view's position in scrollback.
//
// All state lives on one goroutine: asynchronous snapshot fetches and
// pushed diffs are delivered back onto that goroutine by the caller, so
// the type holds no locks. Correctness across in-flight fetches rests on
// the operation sequence number: every user-initiated offset change
// bumps it, every fetch captures it at start, and results arriving with
// a stale sequence are discarded.
package viewport

import (
	"context"

	"github.com/gogpu/termgrid"
)

// Authority is the terminal-state source of truth. Snapshot is a full
// read; SetScrollOffset is fire-and-forget and the authority is expected
// to eventually push a corresponding snapshot or diff.
type Authority interface {
	Snapshot(ctx context.Context) (*termgrid.Snapshot, error)
	SetScrollOffset(offset int)
	SelectedText(ctx context.Context, startRow, startCol, endRow, endCol int) (string, error)
}

// InteractionMode says which pointer-driven operation is in progress.
// Selection drags and scrollbar drags are mutually exclusive.
type InteractionMode int

const (
	ModeIdle InteractionMode = iota
	ModeSelecting
	ModeDraggingScrollbar
)

func (m InteractionMode) String() string {
	switch m {
	case ModeSelecting:
		return "selecting"
	case ModeDraggingScrollbar:
		return "dragging-scrollbar"
	default:
		return "idle"
	}
}

// Config holds viewport policy knobs.
type Config struct {
	// AutoScrollOnOutput forces a snap to bottom when output arrives
	// while scrolled into history.
	AutoScrollOnOutput bool

	// SnapOnKeystroke snaps to bottom on keyboard input while scrolled.
	// Off by default: input should not silently discard the user's
	// scrollback position.
	SnapOnKeystroke bool
}

// DefaultConfig returns the standard viewport policy.
func DefaultConfig() Config {
	return Config{}
}

// Viewport is the scrollback state machine. Not safe for concurrent
// use; see the package comment for the threading contract.
type Viewport struct {
	auth Authority
	cfg  Config

	offset       int
	total        int
	userScrolled bool
	opSeq        uint64
	mode         InteractionMode

	cached    *termgrid.Snapshot
	selection termgrid.Selection

	// heldDiff is the newest pushed diff frozen during a selection drag,
	// replayed once when the drag ends.
	heldDiff *termgrid.Diff

	// requestSnapshot asks the owner to start an async full-snapshot
	// fetch. Used when a diff arrives with no cache to merge into.
	requestSnapshot func()
}

// New creates a viewport backed by the given authority.
func New(auth Authority, cfg Config) *Viewport {
	return &Viewport{auth: auth, cfg: cfg}
}

// SetSnapshotRequester installs the owner's fetch trigger. The callback
// must not block; it typically schedules a fetch on another goroutine
// whose result comes back through ApplySnapshot.
func (v *Viewport) SetSnapshotRequester(fn func()) { v.requestSnapshot = fn }

// Offset returns the current scrollback offset in lines; 0 means live.
func (v *Viewport) Offset() int { return v.offset }

// Total returns the last known total scrollback length.
func (v *Viewport) Total() int { return v.total }

// IsUserScrolled reports whether the user is holding a position in
// history.
func (v *Viewport) IsUserScrolled() bool { return v.userScrolled }

// Mode returns the current interaction mode.
func (v *Viewport) Mode() InteractionMode { return v.mode }

// Sequence returns the current operation sequence number. Capture it
// before starting an async fetch and pass it to ApplySnapshot.
func (v *Viewport) Sequence() uint64 { return v.opSeq }

// Snapshot returns the cached snapshot, or nil before the first apply.
func (v *Viewport) Snapshot() *termgrid.Snapshot { return v.cached }

// ScrollBy moves the offset by deltaLines (positive scrolls into
// history). A no-op move returns false; otherwise the sequence number
// advances, the cache is invalidated and the new offset is sent
// upstream.
func (v *Viewport) ScrollBy(deltaLines int) bool {
	return v.setOffset(v.offset + deltaLines)
}

// ScrollTo sets an absolute offset with the same contract as ScrollBy.
// Negative values clamp to 0. Scrollbar drags and programmatic jumps
// both land here, so user-scrolled tracking stays consistent for every
// entry point.
func (v *Viewport) ScrollTo(absoluteOffset int) bool {
	return v.setOffset(absoluteOffset)
}

// SnapToBottom forces the view live. Returns false when already there.
func (v *Viewport) SnapToBottom() bool {
	return v.setOffset(0)
}

func (v *Viewport) setOffset(offset int) bool {
	if offset < 0 {
		offset = 0
	}
	if offset == v.offset {
		return false
	}

	v.offset = offset
	v.userScrolled = offset > 0
	v.opSeq++
	v.cached = nil
	if v.auth != nil {
		v.auth.SetScrollOffset(offset)
	}
	termgrid.Logger().Debug("viewport: offset changed",
		"offset", offset, "seq", v.opSeq, "userScrolled", v.userScrolled)
	return true
}

// ApplySnapshot installs a fetched snapshot. seqAtFetchStart is the
// value Sequence() returned when the fetch began; a mismatch means the
// user acted while the fetch was in flight and the result is discarded.
// Returns whether the snapshot was applied.
func (v *Viewport) ApplySnapshot(snap *termgrid.Snapshot, seqAtFetchStart uint64) bool {
	if snap == nil {
		return false
	}
	if seqAtFetchStart != v.opSeq {
		termgrid.Logger().Debug("viewport: stale snapshot discarded",
			"fetchSeq", seqAtFetchStart, "seq", v.opSeq)
		return false
	}

	v.cached = snap
	v.adoptOffsets(snap.ScrollbackOffset, snap.TotalScrollback)
	return true
}

// ApplyDiff folds a pushed diff into the cached snapshot. Returns true
// when the visible state changed and a repaint is due.
//
// During a selection drag the update is frozen entirely, holding only
// the newest diff for replay on drag end, so rapid output cannot
// destroy an in-progress selection. With no cache to merge into (or a
// non-mergeable diff that is not a full repaint) the viewport falls
// back to requesting a full snapshot.
func (v *Viewport) ApplyDiff(d *termgrid.Diff) bool {
	if d == nil {
		return false
	}
	if v.mode == ModeSelecting {
		v.heldDiff = d
		return false
	}

	if v.cfg.AutoScrollOnOutput && v.userScrolled {
		v.SnapToBottom()
	}

	if d.FullRepaint {
		v.cached = termgrid.SnapshotFromDiff(d)
		v.adoptOffsets(d.ScrollbackOffset, d.TotalScrollback)
		return true
	}
	if v.cached == nil || !v.cached.CanMerge(d) {
		v.cached = nil
		if v.requestSnapshot != nil {
			v.requestSnapshot()
		}
		return false
	}

	v.cached = v.cached.Merge(d)
	v.adoptOffsets(d.ScrollbackOffset, d.TotalScrollback)
	return true
}

// adoptOffsets reconciles upstream offset and total with local state.
// Live views adopt the incoming offset as truth, and a nonzero adopted
// offset marks the view scrolled so scrolled-state always mirrors
// offset > 0. Scrolled views adopt
// it only when larger: content growth upstream moves a held position
// further from live, while a smaller incoming offset is just as likely
// a stale race and must not silently pull the user toward the bottom.
// Total is adopted unconditionally.
func (v *Viewport) adoptOffsets(offset, total int) {
	v.total = total
	if !v.userScrolled {
		v.offset = offset
		v.userScrolled = offset > 0
		return
	}
	if offset > v.offset {
		v.offset = offset
	}
	if v.cached != nil {
		v.cached.ScrollbackOffset = v.offset
	}
}

// OnKeyboardInput notes a keystroke. Snapping to bottom here is policy,
// not a given: by default a scrolled view stays put. Returns true when
// the view moved.
func (v *Viewport) OnKeyboardInput() bool {
	if v.cfg.SnapOnKeystroke && v.userScrolled {
		return v.SnapToBottom()
	}
	return false
}

// StartSelection begins a selection drag anchored at the given cell.
func (v *Viewport) StartSelection(row, col int) {
	v.mode = ModeSelecting
	v.selection = termgrid.Selection{
		StartRow: row, StartCol: col,
		EndRow: row, EndCol: col,
		Active: true,
	}
}

// UpdateSelection extends the selection drag to the given cell.
func (v *Viewport) UpdateSelection(row, col int) {
	if v.mode != ModeSelecting {
		return
	}
	v.selection.EndRow = row
	v.selection.EndCol = col
}

// EndSelection finishes the drag and replays the update frozen during
// it, if any. Returns true when the replay changed visible state.
func (v *Viewport) EndSelection() bool {
	if v.mode != ModeSelecting {
		return false
	}
	v.mode = ModeIdle

	held := v.heldDiff
	v.heldDiff = nil
	if held != nil {
		return v.ApplyDiff(held)
	}
	return false
}

// StartScrollbarDrag begins a scrollbar drag. Position updates arrive
// through ScrollTo while the drag is active.
func (v *Viewport) StartScrollbarDrag() {
	if v.mode == ModeIdle {
		v.mode = ModeDraggingScrollbar
	}
}

// EndScrollbarDrag finishes a scrollbar drag.
func (v *Viewport) EndScrollbarDrag() {
	if v.mode == ModeDraggingScrollbar {
		v.mode = ModeIdle
	}
}

// HasSelection reports whether a selection exists (active or completed).
func (v *Viewport) HasSelection() bool { return v.selection.Active }

// Selection returns the current selection.
func (v *Viewport) Selection() termgrid.Selection { return v.selection }

// ClearSelection drops the selection. Safe mid-drag: the drag keeps
// running but covers nothing until the next update.
func (v *Viewport) ClearSelection() {
	v.selection = termgrid.Selection{}
}

// SelectedText fetches the selected text from the authority. Upstream
// failure degrades to an empty string; copy should never surface an
// error to the user.
func (v *Viewport) SelectedText(ctx context.Context) string {
	if !v.selection.Active || v.auth == nil {
		return ""
	}
	sel := v.selection.Normalized()
	text, err := v.auth.SelectedText(ctx, sel.StartRow, sel.StartCol, sel.EndRow, sel.EndCol)
	if err != nil {
		termgrid.Logger().Warn("viewport: selected text fetch failed", "error", err)
		return ""
	}
	return text
}
