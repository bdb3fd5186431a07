package termgrid

// Cursor is a 0-based cursor position relative to the visible grid.
type Cursor struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Dimensions is the visible grid size.
type Dimensions struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Snapshot is a complete description of the visible grid at one instant,
// produced by the terminal-state authority. Snapshots are immutable once
// received; the viewport clones before merging diffs into one.
type Snapshot struct {
	Rows            []Row      `json:"rows"`
	Cursor          Cursor     `json:"cursor"`
	Dimensions      Dimensions `json:"dimensions"`
	AlternateScreen bool       `json:"alternate_screen"`
	CursorHidden    bool       `json:"cursor_hidden"`
	Title           string     `json:"title"`

	// ScrollbackOffset is the distance in lines from the live (bottom)
	// position; 0 means live. Always within [0, TotalScrollback].
	ScrollbackOffset int `json:"scrollback_offset"`
	TotalScrollback  int `json:"total_scrollback"`
}

// DirtyRow pairs a changed row with its index in the visible grid.
type DirtyRow struct {
	Index int `json:"index"`
	Row   Row `json:"row"`
}

// Diff is an incremental update carrying only the rows that changed since the
// last read. FullRepaint means the diff effectively carries the whole grid
// and any cached snapshot must be replaced, not merged.
type Diff struct {
	DirtyRows       []DirtyRow `json:"dirty_rows"`
	Cursor          Cursor     `json:"cursor"`
	Dimensions      Dimensions `json:"dimensions"`
	AlternateScreen bool       `json:"alternate_screen"`
	CursorHidden    bool       `json:"cursor_hidden"`
	Title           string     `json:"title"`

	ScrollbackOffset int  `json:"scrollback_offset"`
	TotalScrollback  int  `json:"total_scrollback"`
	FullRepaint      bool `json:"full_repaint"`
}

// Clone returns a deep copy of the snapshot's row structure. Cell slices are
// copied so a merged diff never mutates rows shared with an earlier snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		cells := make([]Cell, len(r.Cells))
		copy(cells, r.Cells)
		out.Rows[i] = Row{Cells: cells, Wrapped: r.Wrapped}
	}
	return &out
}

// Merge applies d to a clone of s and returns the result. Out-of-range row
// indices are dropped: a diff racing a resize can legitimately reference rows
// the cached snapshot no longer has, and partial data must degrade rather
// than error.
//
// Dimension changes and FullRepaint both invalidate the cache; callers detect
// those via CanMerge before calling Merge.
func (s *Snapshot) Merge(d *Diff) *Snapshot {
	out := s.Clone()
	for _, dr := range d.DirtyRows {
		if dr.Index < 0 || dr.Index >= len(out.Rows) {
			continue
		}
		cells := make([]Cell, len(dr.Row.Cells))
		copy(cells, dr.Row.Cells)
		out.Rows[dr.Index] = Row{Cells: cells, Wrapped: dr.Row.Wrapped}
	}
	out.Cursor = d.Cursor
	out.AlternateScreen = d.AlternateScreen
	out.CursorHidden = d.CursorHidden
	out.Title = d.Title
	out.ScrollbackOffset = d.ScrollbackOffset
	out.TotalScrollback = d.TotalScrollback
	return out
}

// CanMerge reports whether d can be merged into s. A full-repaint diff or a
// dimension change means the cached snapshot is stale wholesale.
func (s *Snapshot) CanMerge(d *Diff) bool {
	return !d.FullRepaint && s.Dimensions == d.Dimensions
}

// SnapshotFromDiff promotes a full-repaint diff to a standalone snapshot.
// DirtyRows are assumed to cover every visible row (the authority's contract
// when FullRepaint is set); gaps come out as blank rows.
func SnapshotFromDiff(d *Diff) *Snapshot {
	rows := make([]Row, d.Dimensions.Rows)
	for i := range rows {
		rows[i] = Row{Cells: make([]Cell, 0)}
	}
	for _, dr := range d.DirtyRows {
		if dr.Index < 0 || dr.Index >= len(rows) {
			continue
		}
		rows[dr.Index] = dr.Row
	}
	return &Snapshot{
		Rows:             rows,
		Cursor:           d.Cursor,
		Dimensions:       d.Dimensions,
		AlternateScreen:  d.AlternateScreen,
		CursorHidden:     d.CursorHidden,
		Title:            d.Title,
		ScrollbackOffset: d.ScrollbackOffset,
		TotalScrollback:  d.TotalScrollback,
	}
}

// CellAt returns the cell at (row, col), or a blank default cell when the
// snapshot's row data is shorter than its declared dimensions. Snapshots
// taken mid-update can be ragged; rendering treats the gaps as blanks.
func (s *Snapshot) CellAt(row, col int) Cell {
	if row < 0 || row >= len(s.Rows) {
		return BlankCell()
	}
	cells := s.Rows[row].Cells
	if col < 0 || col >= len(cells) {
		return BlankCell()
	}
	return cells[col]
}
