package termgrid

// Selection is an active text-selection range in grid coordinates.
// Start is where the drag began, End where the pointer currently is; either
// order is legal until Normalized puts them in row-major order.
type Selection struct {
	StartRow, StartCol int
	EndRow, EndCol     int
	Active             bool
}

// Normalized returns the selection with start ≤ end in row-major order.
// All membership tests operate on the normalized form.
func (s Selection) Normalized() Selection {
	if s.StartRow > s.EndRow || (s.StartRow == s.EndRow && s.StartCol > s.EndCol) {
		s.StartRow, s.EndRow = s.EndRow, s.StartRow
		s.StartCol, s.EndCol = s.EndCol, s.StartCol
	}
	return s
}

// Contains reports whether (row, col) falls inside the selection.
// Rows strictly between start and end are fully selected; boundary rows
// select from/to the boundary column; a single-row selection uses the
// half-open column range [StartCol, EndCol).
func (s Selection) Contains(row, col int) bool {
	if !s.Active {
		return false
	}
	n := s.Normalized()
	if row < n.StartRow || row > n.EndRow {
		return false
	}
	if n.StartRow == n.EndRow {
		return col >= n.StartCol && col < n.EndCol
	}
	switch row {
	case n.StartRow:
		return col >= n.StartCol
	case n.EndRow:
		return col < n.EndCol
	default:
		return true
	}
}

// IsEmpty reports whether the selection covers no cells.
func (s Selection) IsEmpty() bool {
	n := s.Normalized()
	return !s.Active || (n.StartRow == n.EndRow && n.StartCol == n.EndCol)
}
